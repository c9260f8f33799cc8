package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/utils"

	"github.com/shopspring/decimal"
)

func price(d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	return d.Round(8).String()
}

func signedPercent(p decimal.Decimal) string {
	if p.IsNegative() {
		return p.StringFixed(2) + "%"
	}
	return "+" + p.StringFixed(2) + "%"
}

// FormatSignalMessage renders a signal lifecycle event as Telegram HTML.
func FormatSignalMessage(event dto.NotificationEvent, s *entity.Signal, now time.Time) string {
	var sb strings.Builder
	market := html.EscapeString(s.Market)

	switch event {
	case dto.EventCreated:
		sb.WriteString(fmt.Sprintf("🚀 <b>New surge signal: %s</b>\n", market))
		sb.WriteString(fmt.Sprintf("🧩 Pattern: <code>%s</code> (%s)\n", html.EscapeString(s.Pattern), s.Timing))
		sb.WriteString(fmt.Sprintf("📊 Score: %.1f | Confidence: %.0f%%\n\n", s.Score, s.Confidence))
		sb.WriteString(fmt.Sprintf("💵 Entry: %s\n", price(s.EntryPrice)))
		sb.WriteString(fmt.Sprintf("🎯 Target: %s\n", price(s.TargetPrice)))
		sb.WriteString(fmt.Sprintf("🛡 Stop loss: %s\n", price(s.StopLossPrice)))
		sb.WriteString(fmt.Sprintf("⏳ Valid until: %s\n", utils.PrettyDate(s.ExpiresAt)))
	case dto.EventBought:
		sb.WriteString(fmt.Sprintf("🟢 <b>Bought %s</b>\n", market))
		sb.WriteString(fmt.Sprintf("💵 Fill: %s | Amount: %s\n", price(s.EntryPrice), s.TradeAmount.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("🎯 Target: %s\n", price(s.TargetPrice)))
		sb.WriteString(fmt.Sprintf("🛡 Stop loss: %s\n", price(s.StopLossPrice)))
		if s.OrderID != nil {
			sb.WriteString(fmt.Sprintf("🧾 Order: <code>%s</code>\n", html.EscapeString(*s.OrderID)))
		}
	case dto.EventWin, dto.EventLose, dto.EventClosed:
		icon := map[dto.NotificationEvent]string{dto.EventWin: "🎯", dto.EventLose: "⚠️", dto.EventClosed: "🔒"}[event]
		sb.WriteString(fmt.Sprintf("%s <b>%s closed: %s</b>\n", icon, market, strings.ToUpper(string(s.Status))))
		sb.WriteString(fmt.Sprintf("📌 Reason: %s\n", strings.ReplaceAll(string(s.CloseReason), "_", " ")))
		exit := s.CurrentPrice
		if s.ExitPrice.Valid {
			exit = s.ExitPrice.Decimal
		}
		sb.WriteString(fmt.Sprintf("💰 Entry: %s → Exit: %s (%s)\n", price(s.EntryPrice), price(exit), signedPercent(s.ProfitLossPercent)))
		if s.ActionTimestamp != nil {
			sb.WriteString(fmt.Sprintf("⏱ Held: %s\n", utils.PrettyDuration(now.Sub(*s.ActionTimestamp))))
		}
	case dto.EventExpired:
		sb.WriteString(fmt.Sprintf("⌛ <b>Signal expired: %s</b>\n", market))
		sb.WriteString(fmt.Sprintf("🧩 %s, entry %s was not taken\n", html.EscapeString(s.Pattern), price(s.EntryPrice)))
	default:
		sb.WriteString(fmt.Sprintf("🔔 <b>%s</b>: %s\n", market, html.EscapeString(string(event))))
	}

	sb.WriteString(fmt.Sprintf("\n<i>#%d · %s</i>", s.ID, utils.PrettyDate(now)))
	return sb.String()
}

// FormatErrorAlertMessage renders an operational failure such as a failed sweep.
func FormatErrorAlertMessage(at time.Time, errType string, errMsg string, data string) string {
	return fmt.Sprintf("📛 <b>[ERROR ALERT]</b>\n%s\n🔧 %s\n⚠️ %s\n\n📄 Data: <code>%s</code>\n",
		utils.PrettyDate(at),
		html.EscapeString(errType),
		html.EscapeString(errMsg),
		html.EscapeString(data))
}
