package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ideaforge/internal/events"
	"ideaforge/internal/models"
	"ideaforge/internal/repositories"
)

// DiagnosticsService records generation requests so failed or slow runs
// can be inspected after the fact. Persistence failures are logged and
// swallowed; diagnostics must never break a run.
type DiagnosticsService struct {
	ctx  context.Context
	repo repositories.LLMRequestRepository
}

func NewDiagnosticsService(repo repositories.LLMRequestRepository) *DiagnosticsService {
	return &DiagnosticsService{repo: repo}
}

func (s *DiagnosticsService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func (s *DiagnosticsService) appCtx() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// StartRequest opens a diagnostics record and returns its request id.
func (s *DiagnosticsService) StartRequest(kind, sessionKey, preview string) string {
	requestID := uuid.NewString()
	rec := &models.LLMRequest{
		RequestID:  requestID,
		Kind:       kind,
		SessionKey: sessionKey,
		Preview:    preview,
		Status:     "running",
	}
	if err := s.repo.Create(rec); err != nil {
		events.Emit(s.appCtx(), events.DiagnosticsEvent,
			events.NewWarn(fmt.Sprintf("failed to record request start: %v", err)))
	}
	return requestID
}

// UpdateRequest patches fields on a running record, e.g. token counts.
func (s *DiagnosticsService) UpdateRequest(requestID string, patch map[string]interface{}) {
	if requestID == "" || len(patch) == 0 {
		return
	}
	if err := s.repo.UpdateByRequestID(requestID, patch); err != nil {
		events.Emit(s.appCtx(), events.DiagnosticsEvent,
			events.NewWarn(fmt.Sprintf("failed to update request %s: %v", requestID, err)))
	}
}

// CompleteRequest settles the record as completed or failed.
func (s *DiagnosticsService) CompleteRequest(requestID string, runErr error) {
	if requestID == "" {
		return
	}
	now := time.Now()
	patch := map[string]interface{}{
		"status":       "completed",
		"completed_at": &now,
	}
	if runErr != nil {
		patch["status"] = "failed"
		patch["error"] = runErr.Error()
	}
	if err := s.repo.UpdateByRequestID(requestID, patch); err != nil {
		events.Emit(s.appCtx(), events.DiagnosticsEvent,
			events.NewWarn(fmt.Sprintf("failed to complete request %s: %v", requestID, err)))
	}
}

// ListRecent returns the newest diagnostics records for a session.
func (s *DiagnosticsService) ListRecent(sessionKey string, limit int) ([]models.LLMRequest, error) {
	return s.repo.ListBySession(sessionKey, limit)
}
