package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bibbank/trust-engine/internal/domain/model"
	"github.com/bibbank/trust-engine/internal/domain/valueobject"
	"github.com/bibbank/trust-engine/pkg/breaker"
	"github.com/bibbank/trust-engine/pkg/tlsutil"
)

const maxResponseBytes = 1 << 20

// NewHTTPClient returns a client for remote detectors. caFile, when set,
// replaces the system roots.
func NewHTTPClient(caFile string) (*http.Client, error) {
	tlsCfg, err := tlsutil.ClientConfig(caFile)
	if err != nil {
		return nil, fmt.Errorf("remote evaluator tls: %w", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	transport.MaxIdleConnsPerHost = 32
	return &http.Client{Transport: transport}, nil
}

type remoteRequest struct {
	ProductID string `json:"productId"`
	SellerID  string `json:"sellerId,omitempty"`
}

type remoteResponse struct {
	Score      *float64       `json:"score"`
	Confidence *float64       `json:"confidence"`
	Detail     map[string]any `json:"detail"`
}

// Remote calls a detector over HTTP. The request deadline comes from ctx.
type Remote struct {
	name     valueobject.SignalName
	endpoint string
	client   *http.Client
	breaker  *breaker.Breaker
}

// NewRemote creates a remote evaluator posting to endpoint.
func NewRemote(name valueobject.SignalName, endpoint string, client *http.Client, b *breaker.Breaker) *Remote {
	return &Remote{name: name, endpoint: endpoint, client: client, breaker: b}
}

// Evaluate posts {productId, sellerId} and expects {score, confidence, detail}.
// Missing confidence defaults to 1.
func (r *Remote) Evaluate(ctx context.Context, req model.EvaluationRequest) (model.SignalResult, error) {
	body, err := json.Marshal(remoteRequest{ProductID: req.ProductID(), SellerID: req.SellerID()})
	if err != nil {
		return model.SignalResult{}, fmt.Errorf("encode request: %w", err)
	}

	resp, err := breaker.Execute(r.breaker, func() (remoteResponse, error) {
		return r.post(ctx, body)
	})
	if err != nil {
		return model.SignalResult{}, err
	}

	confidence := 1.0
	if resp.Confidence != nil {
		confidence = *resp.Confidence
	}
	return model.NewSignalResult(r.name, *resp.Score, confidence, resp.Detail), nil
}

func (r *Remote) post(ctx context.Context, body []byte) (remoteResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return remoteResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return remoteResponse{}, fmt.Errorf("call %s: %w", r.name, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxResponseBytes))
		return remoteResponse{}, fmt.Errorf("%s returned status %d after %s",
			r.name, httpResp.StatusCode, time.Since(start).Round(time.Millisecond))
	}

	var out remoteResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return remoteResponse{}, fmt.Errorf("decode %s response: %w", r.name, err)
	}
	if out.Score == nil {
		return remoteResponse{}, fmt.Errorf("%s response has no score", r.name)
	}
	return out, nil
}
