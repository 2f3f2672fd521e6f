package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-auth/internal/config"
)

func TestNewRedisPing(t *testing.T) {
	mr := miniredis.RunT(t)

	r := NewRedis(config.RedisConfig{
		Addr:        mr.Addr(),
		DialTimeout: time.Second,
		OpTimeout:   time.Second,
	}, zap.NewNop())
	defer r.Close()

	assert.NoError(t, r.Ping(context.Background()))

	mr.Close()
	assert.Error(t, r.Ping(context.Background()))
}

func TestNilHandlesReportNotConfigured(t *testing.T) {
	var r *Redis
	assert.Error(t, r.Ping(context.Background()))

	var pg *Postgres
	assert.Error(t, pg.Ping(context.Background()))
	assert.Nil(t, pg.PoolHandle())
}
