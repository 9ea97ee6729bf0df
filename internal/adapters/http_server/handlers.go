// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"rentalyzer/internal/domain"
)

const (
	maxRequestBytes = 64 << 10
	msgInvalidBody  = "Invalid request body. Expected JSON with an address field."
)

type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) domain.AnalysisResult
}

type Handlers struct{ A Analyzer }

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Post("/v2/property/analysis", h.analyzeProperty)
}

// writeResult always answers 200; success/failure lives in the body.
func writeResult(w http.ResponseWriter, res domain.AnalysisResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Error().Err(err).Msg("write analysis response failed")
	}
}

func (h *Handlers) analyzeProperty(w http.ResponseWriter, r *http.Request) {
	var req domain.AnalysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn().Err(err).Msg("undecodable analysis request")
		writeResult(w, domain.AnalysisResult{Success: false, Message: msgInvalidBody})
		return
	}
	writeResult(w, h.A.Analyze(r.Context(), req))
}
