package service

import (
	"context"
	"sync"
	"time"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"
	"golang-surge-signal/pkg/telegram"
	"golang-surge-signal/pkg/utils"

	"go.uber.org/zap"
)

// NotificationDispatcher delivers signal events. Delivery is fire-and-forget: callers never
// block on it and failures are only logged.
type NotificationDispatcher interface {
	Notify(ctx context.Context, signal entity.Signal, event dto.NotificationEvent)
	Alert(ctx context.Context, errType string, err error, data string)
	// Wait blocks until in-flight deliveries finish or ctx ends.
	Wait(ctx context.Context) error
}

type notificationDispatcher struct {
	log        *logger.Logger
	notifier   telegram.Notifier
	signalRepo repository.SignalRepository
	clock      utils.Clock
	timeout    time.Duration
	wg         sync.WaitGroup
}

// NewNotificationDispatcher builds a dispatcher. A nil notifier only logs events.
func NewNotificationDispatcher(log *logger.Logger, notifier telegram.Notifier, signalRepo repository.SignalRepository, clock utils.Clock, timeout time.Duration) NotificationDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &notificationDispatcher{
		log:        log,
		notifier:   notifier,
		signalRepo: signalRepo,
		clock:      clock,
		timeout:    timeout,
	}
}

func (d *notificationDispatcher) Notify(ctx context.Context, signal entity.Signal, event dto.NotificationEvent) {
	fields := []zap.Field{
		logger.Int64Field("signal_id", signal.ID),
		logger.Int64Field("user_id", signal.UserID),
		logger.StringField("market", signal.Market),
		logger.StringField("event", string(event)),
	}

	if d.notifier == nil {
		d.log.InfoContext(ctx, "Signal event", fields...)
		return
	}

	text := telegram.FormatSignalMessage(event, &signal, d.clock.Now())
	d.wg.Add(1)
	utils.GoSafe(func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.notifier.SendMessage(sendCtx, text); err != nil {
			d.log.ErrorContext(ctx, "Failed to send signal notification", append(fields, logger.ErrorField(err))...)
			return
		}
		if event == dto.EventCreated && d.signalRepo != nil {
			if err := d.signalRepo.MarkSent(sendCtx, signal.ID, d.clock.Now()); err != nil {
				d.log.WarnContext(ctx, "Failed to mark signal as sent", append(fields, logger.ErrorField(err))...)
			}
		}
		d.log.DebugContext(ctx, "Signal notification sent", fields...)
	}, func(err error) {
		d.log.Error("Notification goroutine panicked", logger.ErrorField(err))
	})
}

func (d *notificationDispatcher) Alert(ctx context.Context, errType string, err error, data string) {
	if d.notifier == nil {
		return
	}
	text := telegram.FormatErrorAlertMessage(d.clock.Now(), errType, err.Error(), data)
	d.wg.Add(1)
	utils.GoSafe(func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if sendErr := d.notifier.SendMessage(sendCtx, text); sendErr != nil {
			d.log.WarnContext(ctx, "Failed to send error alert", logger.ErrorField(sendErr))
		}
	}, func(err error) {
		d.log.Error("Alert goroutine panicked", logger.ErrorField(err))
	})
}

func (d *notificationDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
