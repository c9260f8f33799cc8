package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweeperFunc func(ctx context.Context) (*dto.SweepSummary, error)

func (f sweeperFunc) Sweep(ctx context.Context) (*dto.SweepSummary, error) { return f(ctx) }

func TestSweepStrategy_Execute(t *testing.T) {
	s := NewSignalScanStrategy(logger.Nop(), sweeperFunc(func(ctx context.Context) (*dto.SweepSummary, error) {
		return &dto.SweepSummary{Scanned: 3, SignalsCreated: 2}, nil
	}))
	assert.Equal(t, entity.TaskTypeSignalScan, s.GetType())

	out, err := s.Execute(WithRunID(context.Background(), "run-1"))
	require.NoError(t, err)

	var got dto.SweepSummary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, string(entity.TaskTypeSignalScan), got.TaskType)
	assert.Equal(t, 3, got.Scanned)
	assert.Equal(t, 2, got.SignalsCreated)
}

func TestSweepStrategy_PartialOutputOnError(t *testing.T) {
	boom := errors.New("exchange down")
	s := NewPositionMonitorStrategy(logger.Nop(), sweeperFunc(func(ctx context.Context) (*dto.SweepSummary, error) {
		return &dto.SweepSummary{Scanned: 1}, boom
	}))

	out, err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, out, `"scanned":1`)
}

func TestSweepStrategy_NilSummary(t *testing.T) {
	s := NewPositionMonitorStrategy(logger.Nop(), sweeperFunc(func(ctx context.Context) (*dto.SweepSummary, error) {
		return nil, nil
	}))
	out, err := s.Execute(context.Background())
	assert.Error(t, err)
	assert.Empty(t, out)
}

func TestRunIDFromContext(t *testing.T) {
	assert.Empty(t, RunIDFromContext(context.Background()))
	assert.Equal(t, "abc", RunIDFromContext(WithRunID(context.Background(), "abc")))
}
