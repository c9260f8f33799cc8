package service

import (
	"context"
	"errors"
	"testing"

	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingSignal(userID int64) entity.Signal {
	return entity.Signal{
		UserID:        userID,
		Market:        "ADAUSDT",
		Score:         80,
		EntryPrice:    dec("100"),
		TargetPrice:   dec("110"),
		StopLossPrice: dec("95"),
		CurrentPrice:  dec("100"),
		Status:        entity.SignalStatusPending,
		ExpiresAt:     testNow.Add(testConfig().Scanner.SignalValidity),
	}
}

func TestReanchor_UsesFillPrice(t *testing.T) {
	signals := newFakeSignalRepo()
	s := signals.add(pendingSignal(1))
	svc := NewReanchorService(testConfig(), logger.Nop(), signals, newFakeSettingsRepo(enabledSettings(1)))

	updated, err := svc.Reanchor(context.Background(), ReanchorRequest{
		SignalID: s.ID, UserID: 1, FillPrice: dec("110"), OrderID: "42", TradeAmount: dec("100"), At: testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SignalStatusBought, updated.Status)
	assert.True(t, updated.EntryPrice.Equal(dec("110")))
	assert.True(t, updated.CurrentPrice.Equal(dec("110")))
	assert.True(t, updated.TargetPrice.Equal(dec("121")), updated.TargetPrice.String())
	assert.True(t, updated.StopLossPrice.Equal(dec("104.5")), updated.StopLossPrice.String())
	require.NotNil(t, updated.OrderID)
	assert.Equal(t, "42", *updated.OrderID)
	assert.True(t, updated.TradeAmount.Equal(dec("100")))
}

func TestReanchor_DefaultsWithoutSettings(t *testing.T) {
	signals := newFakeSignalRepo()
	s := signals.add(pendingSignal(9))
	svc := NewReanchorService(testConfig(), logger.Nop(), signals, newFakeSettingsRepo())

	updated, err := svc.Reanchor(context.Background(), ReanchorRequest{SignalID: s.ID, UserID: 9, FillPrice: dec("50"), At: testNow})
	require.NoError(t, err)
	assert.True(t, updated.TargetPrice.Equal(dec("55")))
	assert.True(t, updated.StopLossPrice.Equal(dec("47.5")))
}

func TestReanchor_Rejections(t *testing.T) {
	signals := newFakeSignalRepo()
	pending := signals.add(pendingSignal(1))
	bought := pendingSignal(1)
	bought.Status = entity.SignalStatusBought
	boughtSig := signals.add(bought)

	invalid := enabledSettings(2)
	invalid.StopLossPercent = 150
	settings := newFakeSettingsRepo(enabledSettings(1), invalid)
	other := signals.add(pendingSignal(2))

	svc := NewReanchorService(testConfig(), logger.Nop(), signals, settings)
	ctx := context.Background()

	_, err := svc.Reanchor(ctx, ReanchorRequest{SignalID: pending.ID, UserID: 1, FillPrice: dec("0"), At: testNow})
	assert.ErrorIs(t, err, entity.ErrInvalidPrice)

	_, err = svc.Reanchor(ctx, ReanchorRequest{SignalID: pending.ID, UserID: 3, FillPrice: dec("1"), At: testNow})
	assert.ErrorIs(t, err, ErrSignalNotOwned)

	_, err = svc.Reanchor(ctx, ReanchorRequest{SignalID: boughtSig.ID, UserID: 1, FillPrice: dec("1"), At: testNow})
	var transition *entity.InvalidTransitionError
	assert.True(t, errors.As(err, &transition))
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)

	_, err = svc.Reanchor(ctx, ReanchorRequest{SignalID: other.ID, UserID: 2, FillPrice: dec("1"), At: testNow})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	assert.Equal(t, entity.SignalStatusPending, signals.get(pending.ID).Status)
	assert.Equal(t, entity.SignalStatusPending, signals.get(other.ID).Status)
}
