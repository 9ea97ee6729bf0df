package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"rentalyzer/internal/adapters/observability"
	"rentalyzer/internal/domain"
)

// User-facing messages; internal detail only goes to logs and alerts.
const (
	MsgSuccess             = "Property analysis completed successfully."
	MsgAddressRequired     = "Property address is required. Please provide a property address to analyze."
	MsgProviderUnavailable = "The property data service is temporarily unavailable. Please try again later."
	MsgUnexpectedFormat    = "The property data returned was in an unexpected format. Please try again later."
	MsgInternalError       = "An unexpected error occurred while analyzing the property. Please try again later."
)

const auditTimeout = 5 * time.Second

// AnalysisService is the caller-facing entry point. Analyze always returns a result.
type AnalysisService struct {
	reconciler *CacheReconciler
	calc       *RevenueCalculator
	alerts     domain.AlertSink
	queries    domain.QueryRecorder // optional
	newID      func() string
	now        func() time.Time
}

func NewAnalysisService(rec *CacheReconciler, calc *RevenueCalculator, alerts domain.AlertSink, queries domain.QueryRecorder) *AnalysisService {
	return &AnalysisService{
		reconciler: rec,
		calc:       calc,
		alerts:     alerts,
		queries:    queries,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// Accommodates returns the guest count sent to the provider.
func Accommodates(req domain.AnalysisRequest) int {
	if req.Occupancy != nil {
		return *req.Occupancy
	}
	if req.Bedrooms != nil && *req.Bedrooms > 0 {
		return *req.Bedrooms * 2
	}
	return 0
}

func (s *AnalysisService) Analyze(ctx context.Context, req domain.AnalysisRequest) (res domain.AnalysisResult) {
	address := strings.TrimSpace(req.Address)
	if address == "" {
		observability.ObserveAnalysis("none", "invalid_input")
		return failure(MsgAddressRequired)
	}

	queryID := s.newID()
	ctx = WithQueryID(ctx, queryID)
	guests := Accommodates(req)
	source := Source("")

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			log.Error().Err(err).Str("query_id", queryID).Msg("analysis panicked")
			s.alert(ctx, domain.Alert{
				Kind:    domain.AlertInternalError,
				Message: "analysis panicked",
				Err:     err,
				QueryID: queryID,
				Address: address,
				Stack:   string(debug.Stack()),
				At:      s.now().UTC(),
			})
			s.recordError(ctx, queryID, domain.AlertInternalError, err)
			res = failure(MsgInternalError)
		}
		s.recordQuery(ctx, domain.QueryLog{
			ID:           queryID,
			Address:      address,
			Bedrooms:     req.Bedrooms,
			Bathrooms:    req.Bathrooms,
			Accommodates: guests,
			Source:       string(source),
			Success:      res.Success,
			CreatedAt:    s.now().UTC(),
		})
		outcome := "success"
		if !res.Success {
			outcome = "failure"
		}
		observability.ObserveAnalysis(string(source), outcome)
	}()

	q := domain.PropertyQuery{Address: address, Bedrooms: req.Bedrooms, Bathrooms: req.Bathrooms}
	if guests > 0 {
		q.Accommodates = &guests
	}

	resolution, err := s.reconciler.Resolve(ctx, q)
	source = resolution.Source
	if err != nil {
		return s.fail(ctx, queryID, address, err)
	}

	// Cached payloads get the same structural check as fresh ones.
	data, err := validatePayload(resolution.Payload)
	if err != nil {
		log.Error().Err(err).Str("query_id", queryID).Str("source", string(source)).Msg("payload missing required fields")
		s.alert(ctx, domain.Alert{
			Kind:    domain.AlertMalformedPayload,
			Message: "payload missing required fields",
			Err:     err,
			QueryID: queryID,
			Address: address,
			At:      s.now().UTC(),
		})
		s.recordError(ctx, queryID, domain.AlertMalformedPayload, err)
		return failure(MsgUnexpectedFormat)
	}

	stats := extractStatistics(data)
	comps := extractComps(data)
	rev := s.calc.Calculate(stats, comps)
	observability.ObserveRevenue(rev.Typical)

	log.Info().
		Str("query_id", queryID).
		Str("source", string(source)).
		Int("comps", len(comps)).
		Msg("analysis complete")

	return domain.AnalysisResult{
		Success: true,
		Message: MsgSuccess,
		Data:    buildAnalysisData(data, stats, rev),
	}
}

// fail maps a Resolve error to a user-safe result. Provider and payload failures
// were already alerted by the reconciler; caller aborts are not alerted at all.
func (s *AnalysisService) fail(ctx context.Context, queryID, address string, err error) domain.AnalysisResult {
	switch {
	case ctx.Err() != nil:
		log.Warn().Err(err).Str("query_id", queryID).Msg("analysis abandoned by caller")
		s.recordError(ctx, queryID, domain.KindRequestAborted, err)
		return failure(MsgProviderUnavailable)
	case errors.Is(err, domain.ErrProviderUnavailable):
		s.recordError(ctx, queryID, domain.AlertProviderFetchFailed, err)
		return failure(MsgProviderUnavailable)
	case errors.Is(err, domain.ErrMalformedPayload):
		s.recordError(ctx, queryID, domain.AlertMalformedPayload, err)
		return failure(MsgUnexpectedFormat)
	default:
		log.Error().Err(err).Str("query_id", queryID).Msg("analysis failed")
		s.alert(ctx, domain.Alert{
			Kind:    domain.AlertInternalError,
			Message: "analysis failed",
			Err:     err,
			QueryID: queryID,
			Address: address,
			At:      s.now().UTC(),
		})
		s.recordError(ctx, queryID, domain.AlertInternalError, err)
		return failure(MsgInternalError)
	}
}

func (s *AnalysisService) alert(ctx context.Context, a domain.Alert) {
	if s.alerts != nil {
		s.alerts.Alert(ctx, a)
	}
}

func (s *AnalysisService) recordQuery(ctx context.Context, q domain.QueryLog) {
	if s.queries == nil {
		return
	}
	ctx, cancel := auditContext(ctx)
	defer cancel()
	if err := s.queries.RecordQuery(ctx, q); err != nil {
		log.Warn().Err(err).Str("query_id", q.ID).Msg("record query failed")
	}
}

func (s *AnalysisService) recordError(ctx context.Context, queryID string, kind domain.AlertKind, err error) {
	if s.queries == nil {
		return
	}
	qe := domain.QueryError{
		QueryID:   queryID,
		Kind:      kind,
		Message:   err.Error(),
		CreatedAt: s.now().UTC(),
	}
	if kind == domain.AlertInternalError {
		qe.Detail = string(debug.Stack())
	}
	ctx, cancel := auditContext(ctx)
	defer cancel()
	if rerr := s.queries.RecordQueryError(ctx, qe); rerr != nil {
		log.Warn().Err(rerr).Str("query_id", queryID).Msg("record query error failed")
	}
}

// auditContext outlives the request so a timed-out or abandoned analysis is
// still logged.
func auditContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
}

func failure(msg string) domain.AnalysisResult {
	return domain.AnalysisResult{Success: false, Message: msg}
}
