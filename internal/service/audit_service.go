package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-auth/internal/events"
	"github.com/spec-kit/marketplace-auth/internal/observability"
)

// AuditService turns auth lifecycle events into log lines and counters.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventSignedUp, a.handleInfo)
	a.dispatcher.Subscribe(events.EventSignedIn, a.handleInfo)
	a.dispatcher.Subscribe(events.EventTokenRefreshed, a.handleInfo)
	a.dispatcher.Subscribe(events.EventSignedOut, a.handleInfo)
	a.dispatcher.Subscribe(events.EventSignInFailed, a.handleSignInFailed)
	a.dispatcher.Subscribe(events.EventRefreshRejected, a.handleRefreshRejected)
}

func (a *AuditService) handleInfo(_ context.Context, event events.Event) error {
	a.metrics.RecordAuthEvent(string(event.Type))
	a.logger.Info(string(event.Type), eventFields(event)...)
	return nil
}

func (a *AuditService) handleSignInFailed(_ context.Context, event events.Event) error {
	a.metrics.RecordAuthEvent(string(event.Type))
	a.logger.Warn(string(event.Type), eventFields(event)...)
	return nil
}

func (a *AuditService) handleRefreshRejected(_ context.Context, event events.Event) error {
	reason := "unknown"
	if payload, ok := event.Payload.(events.RefreshRejectedPayload); ok {
		reason = payload.Reason
	}
	a.metrics.RecordAuthEvent(string(event.Type) + "_" + reason)
	a.logger.Warn(string(event.Type), append(eventFields(event), zap.String("reason", reason))...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("email", event.Email),
		zap.Time("at", event.Timestamp),
	}
	if payload, ok := event.Payload.(events.SessionPayload); ok {
		if payload.Role != "" {
			fields = append(fields, zap.String("role", string(payload.Role)))
		}
		if !payload.RefreshExpiresAt.IsZero() {
			fields = append(fields, zap.Time("refresh_expires_at", payload.RefreshExpiresAt))
		}
	}
	return fields
}
