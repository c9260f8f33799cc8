package telegram

import (
	"strings"
	"testing"
	"time"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	parts := SplitMessage("line one\nline two\nline three", 12)
	assert.Equal(t, []string{"line one", "line two", "line three"}, parts)

	parts = SplitMessage(strings.Repeat("é", 25), 10)
	assert.Len(t, parts, 3)
	assert.Equal(t, strings.Repeat("é", 10), parts[0])
	assert.Equal(t, strings.Repeat("é", 5), parts[2])
}

func TestFormatSignalMessage(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := &entity.Signal{
		ID:            7,
		Market:        "PEPEUSDT",
		Pattern:       "volume<spike>",
		Score:         82.5,
		Confidence:    71,
		EntryPrice:    decimal.RequireFromString("0.00001234"),
		TargetPrice:   decimal.RequireFromString("0.00001357"),
		StopLossPrice: decimal.Zero,
		ExpiresAt:     now.Add(4 * time.Hour),
	}

	msg := FormatSignalMessage(dto.EventCreated, s, now)
	assert.Contains(t, msg, "<b>New surge signal: PEPEUSDT</b>")
	assert.Contains(t, msg, "volume&lt;spike&gt;")
	assert.Contains(t, msg, "Target: 0.00001357")
	assert.Contains(t, msg, "Stop loss: -")
	assert.Contains(t, msg, "02 Mar 2026 14:00 UTC")
	assert.Contains(t, msg, "#7")

	held := now.Add(-95 * time.Minute)
	s.Status = entity.SignalStatusWin
	s.CloseReason = entity.CloseReasonTargetReached
	s.ProfitLossPercent = decimal.NewFromInt(10)
	s.ActionTimestamp = &held
	msg = FormatSignalMessage(dto.EventWin, s, now)
	assert.Contains(t, msg, "closed: WIN")
	assert.Contains(t, msg, "target reached")
	assert.Contains(t, msg, "+10.00%")
	assert.Contains(t, msg, "Held: 1h35m")
}

func TestFormatErrorAlertMessage(t *testing.T) {
	msg := FormatErrorAlertMessage(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), "sweep signal_scan", "a < b", "run-1")
	assert.Contains(t, msg, "[ERROR ALERT]")
	assert.Contains(t, msg, "a &lt; b")
	assert.Contains(t, msg, "<code>run-1</code>")
}
