package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang-surge-signal/internal/engine/config"
	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/entity"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Scanner.MaxRetries = 1
	cfg.Scanner.RetryMinDelay = time.Millisecond
	cfg.Scanner.RetryMaxDelay = time.Millisecond
	cfg.Scanner.Concurrency = 2
	cfg.Monitor.Concurrency = 2
	return cfg
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeSignalRepo struct {
	mu        sync.Mutex
	nextID    int64
	signals   map[int64]*entity.Signal
	updateErr error
	sent      []int64
}

func newFakeSignalRepo() *fakeSignalRepo {
	return &fakeSignalRepo{signals: make(map[int64]*entity.Signal)}
}

func (r *fakeSignalRepo) add(s entity.Signal) *entity.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if s.ID == 0 {
		s.ID = r.nextID
	}
	if s.Status == "" {
		s.Status = entity.SignalStatusPending
	}
	stored := s
	r.signals[s.ID] = &stored
	out := stored
	return &out
}

func (r *fakeSignalRepo) get(id int64) entity.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.signals[id]
}

func (r *fakeSignalRepo) Create(_ context.Context, s *entity.Signal) error {
	created := r.add(*s)
	s.ID = created.ID
	return nil
}

func (r *fakeSignalRepo) FindByID(_ context.Context, id int64) (*entity.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.signals[id]
	if !ok {
		return nil, repository.ErrSignalNotFound
	}
	out := *s
	return &out, nil
}

func (r *fakeSignalRepo) sorted() []entity.Signal {
	out := make([]entity.Signal, 0, len(r.signals))
	for _, s := range r.signals {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeSignalRepo) Find(_ context.Context, param dto.ListSignalsParam) ([]entity.Signal, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []entity.Signal
	for _, s := range r.sorted() {
		if param.UserID != nil && s.UserID != *param.UserID {
			continue
		}
		if param.Status != nil && s.Status != *param.Status {
			continue
		}
		if param.Market != "" && s.Market != param.Market {
			continue
		}
		matched = append(matched, s)
	}
	total := int64(len(matched))
	if param.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[param.Offset:]
	if param.Limit > 0 && param.Limit < len(matched) {
		matched = matched[:param.Limit]
	}
	return matched, total, nil
}

func (r *fakeSignalRepo) FindByStatus(_ context.Context, status entity.SignalStatus, _ int) ([]entity.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Signal
	for _, s := range r.sorted() {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSignalRepo) FindExpiredPending(_ context.Context, now time.Time, _ int) ([]entity.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Signal
	for _, s := range r.sorted() {
		if s.IsExpired(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSignalRepo) HasOpenSignal(_ context.Context, userID int64, market string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.signals {
		if s.UserID == userID && s.Market == strings.ToUpper(market) && s.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSignalRepo) OpenAmountByMarket(_ context.Context, userID int64, market string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, s := range r.signals {
		if s.UserID == userID && s.Market == strings.ToUpper(market) && s.Status == entity.SignalStatusBought {
			sum = sum.Add(s.TradeAmount)
		}
	}
	return sum, nil
}

func (r *fakeSignalRepo) Update(_ context.Context, id int64, fn func(*entity.Signal) error) (*entity.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	s, ok := r.signals[id]
	if !ok {
		return nil, repository.ErrSignalNotFound
	}
	working := *s
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.Version++
	r.signals[id] = &working
	out := working
	return &out, nil
}

func (r *fakeSignalRepo) MarkSent(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.signals[id]; ok {
		s.SentAt = &at
	}
	r.sent = append(r.sent, id)
	return nil
}

func (r *fakeSignalRepo) Aggregate(_ context.Context, userID int64) (*dto.SignalAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg := &dto.SignalAggregate{TotalProfitLoss: decimal.Zero}
	for _, s := range r.signals {
		if s.UserID != userID {
			continue
		}
		agg.Total++
		if s.UserAction == entity.UserActionBought {
			agg.Executed++
		}
		switch s.Status {
		case entity.SignalStatusWin:
			agg.Wins++
			agg.WinPercentSum = agg.WinPercentSum.Add(s.ProfitLossPercent)
		case entity.SignalStatusLose:
			agg.Losses++
			agg.LossPercentSum = agg.LossPercentSum.Add(s.ProfitLossPercent)
		}
		if s.Status.IsTerminal() {
			agg.TotalProfitLoss = agg.TotalProfitLoss.Add(s.RealizedAmount())
		}
	}
	return agg, nil
}

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings map[int64]*entity.AutoTradingSettings
	findErr  error
	released []decimal.Decimal
	trades   int
	closes   []bool
}

func newFakeSettingsRepo(rows ...*entity.AutoTradingSettings) *fakeSettingsRepo {
	r := &fakeSettingsRepo{settings: make(map[int64]*entity.AutoTradingSettings)}
	for _, s := range rows {
		r.settings[s.UserID] = s
	}
	return r
}

func (r *fakeSettingsRepo) row(userID int64) entity.AutoTradingSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.settings[userID]
}

func (r *fakeSettingsRepo) FindByUserID(_ context.Context, userID int64) (*entity.AutoTradingSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	s, ok := r.settings[userID]
	if !ok {
		return nil, repository.ErrSettingsNotFound
	}
	out := *s
	return &out, nil
}

func (r *fakeSettingsRepo) GetOrCreate(_ context.Context, defaults *entity.AutoTradingSettings) (*entity.AutoTradingSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[defaults.UserID]
	if !ok {
		s = defaults
		r.settings[defaults.UserID] = s
	}
	out := *s
	return &out, nil
}

func (r *fakeSettingsRepo) ListUserIDs(_ context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.settings))
	for id := range r.settings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeSettingsRepo) Save(_ context.Context, settings *entity.AutoTradingSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *settings
	r.settings[settings.UserID] = &stored
	return nil
}

func (r *fakeSettingsRepo) Reserve(_ context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[userID]
	if !ok {
		return false, nil
	}
	if s.CommittedAmount.Add(amount).GreaterThan(s.TotalBudget) || s.OpenPositions >= s.MaxPositions {
		return false, nil
	}
	s.CommittedAmount = s.CommittedAmount.Add(amount)
	s.OpenPositions++
	return true, nil
}

func (r *fakeSettingsRepo) Commit(_ context.Context, userID int64, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[userID]; ok {
		s.CommittedAmount = s.CommittedAmount.Add(amount)
		s.OpenPositions++
	}
	return nil
}

func (r *fakeSettingsRepo) Release(_ context.Context, userID int64, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, amount)
	if s, ok := r.settings[userID]; ok {
		s.CommittedAmount = decimal.Max(s.CommittedAmount.Sub(amount), decimal.Zero)
		if s.OpenPositions > 0 {
			s.OpenPositions--
		}
	}
	return nil
}

func (r *fakeSettingsRepo) RecordTrade(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades++
	if s, ok := r.settings[userID]; ok {
		s.TotalTrades++
	}
	return nil
}

func (r *fakeSettingsRepo) RecordClose(_ context.Context, userID int64, win bool, realized decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes = append(r.closes, win)
	if s, ok := r.settings[userID]; ok {
		if win {
			s.SuccessfulTrades++
		}
		s.TotalProfitLoss = s.TotalProfitLoss.Add(realized)
	}
	return nil
}

type fakeMarket struct {
	mu         sync.Mutex
	candles    map[string][]entity.Candle
	candleErrs map[string]error
	prices     map[string]decimal.Decimal
	priceErrs  map[string]error
	top        []string
	topErr     error
	priceCalls map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		candles:    make(map[string][]entity.Candle),
		candleErrs: make(map[string]error),
		prices:     make(map[string]decimal.Decimal),
		priceErrs:  make(map[string]error),
		priceCalls: make(map[string]int),
	}
}

func (m *fakeMarket) GetCandles(_ context.Context, market, _ string, _ int) ([]entity.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.candleErrs[market]; err != nil {
		return nil, err
	}
	return m.candles[market], nil
}

func (m *fakeMarket) GetCurrentPrice(_ context.Context, market string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceCalls[market]++
	if err := m.priceErrs[market]; err != nil {
		return decimal.Zero, err
	}
	p, ok := m.prices[market]
	if !ok {
		return decimal.Zero, repository.ErrMalformedData
	}
	return p, nil
}

func (m *fakeMarket) TopMarketsByVolume(_ context.Context, _ string, n int) ([]string, error) {
	if m.topErr != nil {
		return nil, m.topErr
	}
	if n < len(m.top) {
		return m.top[:n], nil
	}
	return m.top, nil
}

type fakeExchange struct {
	mu     sync.Mutex
	fill   decimal.Decimal
	err    error
	orders []string
}

func (e *fakeExchange) PlaceMarketBuy(_ context.Context, market string, quoteAmount decimal.Decimal) (*dto.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders = append(e.orders, market)
	if e.err != nil {
		return nil, e.err
	}
	return &dto.OrderResult{
		OrderID:     "order-" + market,
		FillPrice:   e.fill,
		ExecutedQty: quoteAmount.Div(e.fill),
		QuoteAmount: quoteAmount,
	}, nil
}

type sentEvent struct {
	SignalID int64
	Event    dto.NotificationEvent
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []sentEvent
	alerts []string
}

func (d *recordingDispatcher) Notify(_ context.Context, s entity.Signal, event dto.NotificationEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, sentEvent{SignalID: s.ID, Event: event})
}

func (d *recordingDispatcher) Alert(_ context.Context, errType string, _ error, _ string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, errType)
}

func (d *recordingDispatcher) Wait(context.Context) error { return nil }

func (d *recordingDispatcher) eventsOf(kind dto.NotificationEvent) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.events {
		if e.Event == kind {
			n++
		}
	}
	return n
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	nextID  uint
	records map[uint]*entity.TaskExecutionHistory
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{records: make(map[uint]*entity.TaskExecutionHistory)}
}

func (r *fakeHistoryRepo) Create(_ context.Context, h *entity.TaskExecutionHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	h.ID = r.nextID
	stored := *h
	r.records[h.ID] = &stored
	return nil
}

func (r *fakeHistoryRepo) FindByID(_ context.Context, id uint) (*entity.TaskExecutionHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.records[id]
	if !ok {
		return nil, repository.ErrSignalNotFound
	}
	out := *h
	return &out, nil
}

func (r *fakeHistoryRepo) FindAll(_ context.Context, limit int) ([]entity.TaskExecutionHistory, error) {
	return r.FindAllByTaskType(context.Background(), "", limit)
}

func (r *fakeHistoryRepo) FindAllByTaskType(_ context.Context, taskType entity.TaskType, limit int) ([]entity.TaskExecutionHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.TaskExecutionHistory
	for id := r.nextID; id > 0 && len(out) < limit; id-- {
		h, ok := r.records[id]
		if !ok || (taskType != "" && h.TaskType != taskType) {
			continue
		}
		out = append(out, *h)
	}
	return out, nil
}

func (r *fakeHistoryRepo) Update(_ context.Context, h *entity.TaskExecutionHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *h
	r.records[h.ID] = &stored
	return nil
}

type fakeLocker struct {
	held bool
	err  error
}

func (l *fakeLocker) AcquireLock(context.Context, string, time.Duration) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	if l.held {
		return "", false, nil
	}
	return "token", true, nil
}

func (l *fakeLocker) ReleaseLock(context.Context, string, string) error { return nil }

func enabledSettings(userID int64) *entity.AutoTradingSettings {
	s := entity.DefaultAutoTradingSettings(userID)
	s.Enabled = true
	s.MinConfidence = 50
	return s
}
