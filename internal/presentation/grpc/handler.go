package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/trust-engine/internal/application/dto"
	"github.com/bibbank/trust-engine/internal/application/usecase"
	"github.com/bibbank/trust-engine/internal/domain/model"
)

// Compile-time assertion that TrustServiceHandler implements TrustServiceServer.
var _ TrustServiceServer = (*TrustServiceHandler)(nil)

// TrustServiceHandler implements the gRPC TrustServiceServer interface.
type TrustServiceHandler struct {
	UnimplementedTrustServiceServer
	checkTrust     *usecase.CheckTrust
	listEvaluators *usecase.ListEvaluators
	logger         *slog.Logger
}

// NewTrustServiceHandler creates a new gRPC handler.
func NewTrustServiceHandler(
	checkTrust *usecase.CheckTrust,
	listEvaluators *usecase.ListEvaluators,
	logger *slog.Logger,
) *TrustServiceHandler {
	return &TrustServiceHandler{
		checkTrust:     checkTrust,
		listEvaluators: listEvaluators,
		logger:         logger,
	}
}

// CheckTrustRequest represents the proto CheckTrustRequest message.
type CheckTrustRequest struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
}

// SignalMsg represents the proto Signal message. Score is absent unless
// status is "ok".
type SignalMsg struct {
	Score      *float64 `json:"score,omitempty"`
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Reason     string   `json:"reason,omitempty"`
	Confidence float64  `json:"confidence"`
	LatencyMS  int64    `json:"latency_ms"`
}

// VerdictMsg represents the proto Verdict message.
type VerdictMsg struct {
	TrustScore     *float64    `json:"trust_score,omitempty"`
	VerdictID      string      `json:"verdict_id"`
	ProductID      string      `json:"product_id"`
	SellerID       string      `json:"seller_id,omitempty"`
	Classification string      `json:"classification"`
	Message        string      `json:"message"`
	EvaluatedAt    string      `json:"evaluated_at"`
	Signals        []SignalMsg `json:"signals"`
	MissingSignals []string    `json:"missing_signals"`
	Degraded       bool        `json:"degraded"`
	Cached         bool        `json:"cached"`
}

// CheckTrustResponse represents the proto CheckTrustResponse message.
type CheckTrustResponse struct {
	Verdict *VerdictMsg `json:"verdict"`
}

// ListEvaluatorsRequest represents the proto ListEvaluatorsRequest message.
type ListEvaluatorsRequest struct{}

// EvaluatorMsg represents the proto Evaluator message.
type EvaluatorMsg struct {
	Name     string  `json:"name"`
	Polarity string  `json:"polarity"`
	Weight   float64 `json:"weight"`
	Enabled  bool    `json:"enabled"`
}

// ListEvaluatorsResponse represents the proto ListEvaluatorsResponse message.
type ListEvaluatorsResponse struct {
	Evaluators []EvaluatorMsg `json:"evaluators"`
}

// CheckTrust handles a trust check request.
func (h *TrustServiceHandler) CheckTrust(ctx context.Context, req *CheckTrustRequest) (*CheckTrustResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	result, err := h.checkTrust.Execute(ctx, dto.TrustCheckRequest{
		ProductID: req.ProductID,
		SellerID:  req.SellerID,
	})
	if err != nil {
		return nil, h.toStatus(err)
	}

	return &CheckTrustResponse{Verdict: toVerdictMsg(result)}, nil
}

// ListEvaluators handles an evaluator listing request.
func (h *TrustServiceHandler) ListEvaluators(ctx context.Context, _ *ListEvaluatorsRequest) (*ListEvaluatorsResponse, error) {
	entries := h.listEvaluators.Execute(ctx)
	out := make([]EvaluatorMsg, 0, len(entries))
	for _, e := range entries {
		out = append(out, EvaluatorMsg{Name: e.Name, Polarity: e.Polarity, Weight: e.Weight, Enabled: e.Enabled})
	}
	return &ListEvaluatorsResponse{Evaluators: out}, nil
}

func (h *TrustServiceHandler) toStatus(err error) error {
	var vErr *model.ValidationError
	switch {
	case errors.As(err, &vErr):
		return status.Errorf(codes.InvalidArgument, "invalid %s: %s", vErr.Field, vErr.Message)
	case errors.Is(err, model.ErrCacheUnavailable):
		h.logger.Error("trust check unavailable", slog.String("error", err.Error()))
		return status.Error(codes.Unavailable, model.ErrCacheUnavailable.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		h.logger.Error("failed to check trust", slog.String("error", err.Error()))
		return status.Error(codes.Internal, "internal error")
	}
}

func toVerdictMsg(r dto.TrustCheckResponse) *VerdictMsg {
	signals := make([]SignalMsg, 0, len(r.Signals))
	for _, s := range r.Signals {
		signals = append(signals, SignalMsg{
			Score:      s.Score,
			Name:       s.Name,
			Status:     s.Status,
			Reason:     s.Reason,
			Confidence: s.Confidence,
			LatencyMS:  s.LatencyMS,
		})
	}
	return &VerdictMsg{
		TrustScore:     r.TrustScore,
		VerdictID:      r.VerdictID.String(),
		ProductID:      r.ProductID,
		SellerID:       r.SellerID,
		Classification: r.Classification,
		Message:        r.Message,
		EvaluatedAt:    r.EvaluatedAt.Format(time.RFC3339Nano),
		Signals:        signals,
		MissingSignals: r.MissingSignals,
		Degraded:       r.Degraded,
		Cached:         r.Cached,
	}
}
