package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bibbank/trust-engine/internal/application/dto"
	"github.com/bibbank/trust-engine/internal/application/registry"
	"github.com/bibbank/trust-engine/internal/application/usecase"
	"github.com/bibbank/trust-engine/internal/domain/model"
)

const maxBodyBytes = 64 << 10

// TrustHandler serves the trust check, audit and evaluator administration API.
type TrustHandler struct {
	checkTrust      *usecase.CheckTrust
	getAuditTrail   *usecase.GetAuditTrail
	listEvaluators  *usecase.ListEvaluators
	updateEvaluator *usecase.UpdateEvaluator
	validate        *validator.Validate
	logger          *slog.Logger
}

// NewTrustHandler creates a new REST handler.
func NewTrustHandler(
	checkTrust *usecase.CheckTrust,
	getAuditTrail *usecase.GetAuditTrail,
	listEvaluators *usecase.ListEvaluators,
	updateEvaluator *usecase.UpdateEvaluator,
	logger *slog.Logger,
) *TrustHandler {
	return &TrustHandler{
		checkTrust:      checkTrust,
		getAuditTrail:   getAuditTrail,
		listEvaluators:  listEvaluators,
		updateEvaluator: updateEvaluator,
		validate:        newValidator(),
		logger:          logger,
	}
}

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// RegisterRoutes registers the API endpoints on the provided ServeMux.
func (h *TrustHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/trust-check", h.CheckTrust)
	mux.HandleFunc("GET /v1/audit", h.AuditTrail)
	mux.HandleFunc("GET /v1/evaluators", h.ListEvaluators)
	mux.HandleFunc("PATCH /v1/evaluators/{name}", h.UpdateEvaluator)
}

// CheckTrust handles POST /v1/trust-check.
func (h *TrustHandler) CheckTrust(w http.ResponseWriter, r *http.Request) {
	var req dto.TrustCheckRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.checkTrust.Execute(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AuditTrail handles GET /v1/audit?productId=&limit=.
func (h *TrustHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	q := dto.AuditQuery{ProductID: r.URL.Query().Get("productId")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, model.NewValidationError("limit", "must be an integer"))
			return
		}
		q.Limit = limit
	}
	if err := h.validate.Struct(q); err != nil {
		h.writeError(w, r, err)
		return
	}

	records, err := h.getAuditTrail.Execute(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// ListEvaluators handles GET /v1/evaluators.
func (h *TrustHandler) ListEvaluators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"evaluators": h.listEvaluators.Execute(r.Context())})
}

// UpdateEvaluator handles PATCH /v1/evaluators/{name}.
func (h *TrustHandler) UpdateEvaluator(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateEvaluatorRequest
	req.Name = r.PathValue("name")
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.updateEvaluator.Execute(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("evaluator updated",
		"signal", resp.Name,
		"weight", resp.Weight,
		"enabled", resp.Enabled,
	)
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the caller should continue.
func (h *TrustHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, model.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err)))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, r, err)
		return false
	}
	return true
}

func (h *TrustHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr   *model.ValidationError
		fields validator.ValidationErrors
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: vErr.Message, Field: vErr.Field})
	case errors.As(err, &fields):
		f := fields[0]
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("failed on the '%s' rule", f.Tag()),
			Field: f.Field(),
		})
	case errors.Is(err, registry.ErrUnknownEvaluator):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrCacheUnavailable):
		h.logger.Error("trust check unavailable", "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: model.ErrCacheUnavailable.Error()})
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
