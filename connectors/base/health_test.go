// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package base

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubChecker struct {
	status *HealthStatus
	err    error
}

func (s stubChecker) Name() string { return "stub" }

func (s stubChecker) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return s.status, s.err
}

func TestProbe(t *testing.T) {
	hs := Probe(context.Background(), func(context.Context) error { return nil })
	assert.True(t, hs.Healthy)
	assert.Empty(t, hs.Error)
	assert.False(t, hs.Timestamp.IsZero())

	hs = Probe(context.Background(), func(context.Context) error { return errors.New("connection refused") })
	assert.False(t, hs.Healthy)
	assert.Equal(t, "connection refused", hs.Error)
}

func TestCheck(t *testing.T) {
	ok := &HealthStatus{Healthy: true}
	assert.Same(t, ok, Check(context.Background(), stubChecker{status: ok}))

	hs := Check(context.Background(), stubChecker{err: errors.New("timeout")})
	assert.False(t, hs.Healthy)
	assert.Equal(t, "timeout", hs.Error)

	hs = Check(context.Background(), stubChecker{})
	assert.False(t, hs.Healthy)
	assert.Contains(t, hs.Error, "stub")
}
