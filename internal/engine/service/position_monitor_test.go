package service

import (
	"context"
	"testing"
	"time"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"
	"golang-surge-signal/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type monitorFixture struct {
	signals    *fakeSignalRepo
	settings   *fakeSettingsRepo
	market     *fakeMarket
	dispatcher *recordingDispatcher
	monitor    PositionMonitor
}

func newMonitorFixture() *monitorFixture {
	settings := enabledSettings(1)
	f := &monitorFixture{
		signals:    newFakeSignalRepo(),
		settings:   newFakeSettingsRepo(settings),
		market:     newFakeMarket(),
		dispatcher: &recordingDispatcher{},
	}
	f.monitor = NewPositionMonitor(testConfig(), logger.Nop(), f.market, f.signals, f.settings, f.dispatcher, &utils.FixedClock{T: testNow})
	return f
}

func (f *monitorFixture) bought(market string, boughtAt time.Time) *entity.Signal {
	f.settings.settings[1].CommittedAmount = f.settings.settings[1].CommittedAmount.Add(dec("100"))
	f.settings.settings[1].OpenPositions++
	return f.signals.add(entity.Signal{
		UserID:          1,
		Market:          market,
		Pattern:         "breakout",
		EntryPrice:      dec("100"),
		TargetPrice:     dec("110"),
		StopLossPrice:   dec("95"),
		CurrentPrice:    dec("100"),
		TradeAmount:     dec("100"),
		Status:          entity.SignalStatusBought,
		UserAction:      entity.UserActionBought,
		ActionTimestamp: &boughtAt,
		ExpiresAt:       boughtAt.Add(time.Hour),
	})
}

func TestPositionMonitorSweep(t *testing.T) {
	f := newMonitorFixture()
	recent := testNow.Add(-time.Hour)

	win := f.bought("WINUSDT", recent)
	lose := f.bought("LOSEUSDT", recent)
	old := f.bought("HOLDUSDT", testNow.Add(-100*time.Hour))
	flat := f.bought("FLATUSDT", recent)
	broken := f.bought("ERRUSDT", recent)
	stale := f.signals.add(entity.Signal{
		UserID: 1, Market: "OLDUSDT", EntryPrice: dec("1"), Status: entity.SignalStatusPending,
		ExpiresAt: testNow.Add(-time.Minute),
	})
	fresh := f.signals.add(entity.Signal{
		UserID: 1, Market: "NEWUSDT", EntryPrice: dec("1"), Status: entity.SignalStatusPending,
		ExpiresAt: testNow.Add(time.Hour),
	})

	f.market.prices["WINUSDT"] = dec("111")
	f.market.prices["LOSEUSDT"] = dec("94")
	f.market.prices["HOLDUSDT"] = dec("102")
	f.market.prices["FLATUSDT"] = dec("101")
	f.market.priceErrs["ERRUSDT"] = repository.ErrTransient

	summary, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Expired)
	assert.Equal(t, 3, summary.Closed)
	assert.Equal(t, 6, summary.Scanned)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Failed)

	got := f.signals.get(win.ID)
	assert.Equal(t, entity.SignalStatusWin, got.Status)
	assert.Equal(t, entity.CloseReasonTargetReached, got.CloseReason)
	assert.True(t, got.ExitPrice.Decimal.Equal(dec("111")))
	assert.True(t, got.ProfitLossPercent.Equal(dec("11")), got.ProfitLossPercent.String())

	got = f.signals.get(lose.ID)
	assert.Equal(t, entity.SignalStatusLose, got.Status)
	assert.Equal(t, entity.CloseReasonStopLoss, got.CloseReason)
	assert.True(t, got.ProfitLossPercent.Equal(dec("-6")), got.ProfitLossPercent.String())

	got = f.signals.get(old.ID)
	assert.Equal(t, entity.SignalStatusClosed, got.Status)
	assert.Equal(t, entity.CloseReasonHoldingPeriod, got.CloseReason)

	got = f.signals.get(flat.ID)
	assert.Equal(t, entity.SignalStatusBought, got.Status)
	assert.True(t, got.CurrentPrice.Equal(dec("101")))
	assert.True(t, got.ProfitLossPercent.Equal(dec("1")), got.ProfitLossPercent.String())

	got = f.signals.get(broken.ID)
	assert.Equal(t, entity.SignalStatusBought, got.Status)
	assert.True(t, got.CurrentPrice.Equal(dec("100")))

	assert.Equal(t, entity.SignalStatusExpired, f.signals.get(stale.ID).Status)
	assert.Equal(t, entity.CloseReasonExpired, f.signals.get(stale.ID).CloseReason)
	assert.Equal(t, entity.SignalStatusPending, f.signals.get(fresh.ID).Status)

	row := f.settings.row(1)
	assert.True(t, row.CommittedAmount.Equal(dec("200")), "two open positions keep their budget, got %s", row.CommittedAmount)
	assert.Equal(t, 2, row.OpenPositions)
	assert.Equal(t, []bool{true, false, false}, f.settings.closes)
	assert.Equal(t, 1, row.SuccessfulTrades)

	assert.Equal(t, 1, f.dispatcher.eventsOf(dto.EventWin))
	assert.Equal(t, 1, f.dispatcher.eventsOf(dto.EventLose))
	assert.Equal(t, 1, f.dispatcher.eventsOf(dto.EventClosed))
	assert.Equal(t, 1, f.dispatcher.eventsOf(dto.EventExpired))
}

func TestPositionMonitorFetchesEachMarketOnce(t *testing.T) {
	f := newMonitorFixture()
	f.bought("BTCUSDT", testNow.Add(-time.Hour))
	f.bought("BTCUSDT", testNow.Add(-time.Hour))
	f.market.prices["BTCUSDT"] = dec("101")

	_, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.market.priceCalls["BTCUSDT"])
}

func TestPositionMonitorWithoutTargetOrStop(t *testing.T) {
	f := newMonitorFixture()
	s := f.bought("SOLUSDT", testNow.Add(-time.Hour))
	_, err := f.signals.Update(context.Background(), s.ID, func(locked *entity.Signal) error {
		locked.TargetPrice = dec("0")
		locked.StopLossPrice = dec("0")
		return nil
	})
	require.NoError(t, err)
	f.market.prices["SOLUSDT"] = dec("500")

	summary, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Closed)
	assert.Equal(t, entity.SignalStatusBought, f.signals.get(s.ID).Status)
}

func TestPositionMonitorLosesRaceQuietly(t *testing.T) {
	f := newMonitorFixture()
	f.bought("BTCUSDT", testNow.Add(-time.Hour))
	f.market.prices["BTCUSDT"] = dec("200")
	f.signals.updateErr = repository.ErrConcurrentUpdate

	summary, err := f.monitor.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Closed)
	assert.Empty(t, f.settings.released)
}
