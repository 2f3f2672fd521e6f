package service

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/events"
	"github.com/spec-kit/marketplace-auth/internal/observability"
)

func TestAuditServiceLogsAndCounts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	audit := NewAuditService(dispatcher, zap.New(core), metrics)
	audit.RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventSignedIn, "kim@example.com", events.SessionPayload{Role: domain.RoleOwner})))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventRefreshRejected, "kim@example.com", events.RefreshRejectedPayload{Reason: "mismatch"})))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventSignInFailed, "lee@example.com", nil)))

	require.Equal(t, 3, logs.Len())
	entries := logs.All()

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "signed_in", entries[0].Message)
	assert.Equal(t, "OWNER", entries[0].ContextMap()["role"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "mismatch", entries[1].ContextMap()["reason"])

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "lee@example.com", entries[2].ContextMap()["email"])

	expected := `
# HELP marketplace_auth_events_total Auth lifecycle events by type
# TYPE marketplace_auth_events_total counter
marketplace_auth_events_total{event="refresh_rejected_mismatch"} 1
marketplace_auth_events_total{event="sign_in_failed"} 1
marketplace_auth_events_total{event="signed_in"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "marketplace_auth_events_total"))
}

func TestAuditServiceWithoutDispatcher(t *testing.T) {
	audit := NewAuditService(nil, nil, nil)
	assert.NotPanics(t, audit.RegisterHandlers)
}
