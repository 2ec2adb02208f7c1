package server

import (
	"encoding/json"
	"net/http"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/gateway"
	"github.com/pario-ai/askgate/pkg/models"
)

const maxRequestBodySize = 1 << 20

// metricsResponse flattens the snapshot and adds the limiter window.
type metricsResponse struct {
	models.MetricsSnapshot
	RateLimit *models.RateLimitStatus `json:"rateLimit,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	routes := make([]string, 0, len(s.gateways))
	for route := range s.gateways {
		routes = append(routes, route)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "routes": routes})
}

func (s *Server) handleAsk(g *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req models.AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, string(apierr.KindInvalidInput), "Invalid request body")
			return
		}

		answer, err := g.Answer(r.Context(), req.Raw())
		if err != nil {
			writeJSONError(w, r, apierr.HTTPStatus(err), string(apierr.KindOf(err)), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, models.AskResponse{
			Success:    true,
			Output:     answer.Text,
			Cached:     answer.Cached,
			Warning:    answer.Warning,
			Confidence: answer.Confidence,
			Source:     answer.Source,
			RequestID:  gateway.RequestID(r.Context()),
		})
	}
}

func (s *Server) handleMetrics(g *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := metricsResponse{MetricsSnapshot: g.Metrics()}
		if st, ok := g.RateLimit(); ok {
			resp.RateLimit = &st
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, r *http.Request, code int, kind, message string) {
	if kind == "" {
		kind = "internal_error"
	}
	writeJSON(w, code, models.ErrorResponse{
		Success:   false,
		Error:     message,
		Kind:      kind,
		RequestID: gateway.RequestID(r.Context()),
	})
}
