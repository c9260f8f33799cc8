package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang-surge-signal/internal/engine/config"
	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/engine/strategy"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/common"
	"golang-surge-signal/pkg/logger"
	"golang-surge-signal/pkg/metrics"
	"golang-surge-signal/pkg/utils"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	ErrUnknownTask        = errors.New("unknown task type")
	ErrTaskAlreadyRunning = errors.New("task is already running")
	ErrSchedulerRunning   = errors.New("scheduler is already running")
	ErrSchedulerStopped   = errors.New("scheduler is not running")
)

// Locker guards a task across service instances. *redis.Client from pkg/redis implements it.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// SchedulerService owns the periodic sweeps.
type SchedulerService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() dto.SchedulerStatus
	// RunNow executes a sweep immediately and returns its history record.
	RunNow(ctx context.Context, taskType entity.TaskType) (*entity.TaskExecutionHistory, error)
}

type scheduledTask struct {
	strategy   strategy.TaskExecutionStrategy
	schedule   string
	timeout    time.Duration
	lockKey    string
	entryID    cron.EntryID
	running    bool
	lastRun    *time.Time
	lastStatus entity.TaskStatus
}

type schedulerService struct {
	cfg         *config.Config
	logger      *logger.Logger
	historyRepo repository.TaskExecutionHistoryRepository
	locker      Locker
	dispatcher  NotificationDispatcher
	clock       utils.Clock

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	tasks  map[entity.TaskType]*scheduledTask
	order  []entity.TaskType
}

// NewSchedulerService creates the scheduler. locker may be nil for single-instance setups.
func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	historyRepo repository.TaskExecutionHistoryRepository,
	locker Locker,
	dispatcher NotificationDispatcher,
	clock utils.Clock,
	strategies ...strategy.TaskExecutionStrategy,
) SchedulerService {
	s := &schedulerService{
		cfg:         cfg,
		logger:      log,
		historyRepo: historyRepo,
		locker:      locker,
		dispatcher:  dispatcher,
		clock:       clock,
		tasks:       make(map[entity.TaskType]*scheduledTask),
	}
	for _, st := range strategies {
		task := &scheduledTask{strategy: st}
		switch st.GetType() {
		case entity.TaskTypeSignalScan:
			task.schedule = cfg.Scanner.Schedule
			task.timeout = cfg.Scanner.SweepTimeout
			task.lockKey = common.RedisLockSignalScan
		case entity.TaskTypePositionMonitor:
			task.schedule = cfg.Monitor.Schedule
			task.timeout = cfg.Monitor.SweepTimeout
			task.lockKey = common.RedisLockPositionScan
		default:
			task.timeout = cfg.Scanner.SweepTimeout
			task.lockKey = common.RedisLockPrefix + string(st.GetType())
		}
		s.tasks[st.GetType()] = task
		s.order = append(s.order, st.GetType())
	}
	return s
}

// Start registers every task with a cron schedule and starts the cron loop. Runs never overlap.
func (s *schedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrSchedulerRunning
	}

	loc, err := time.LoadLocation(s.cfg.Scheduler.TimeZone)
	if err != nil {
		return fmt.Errorf("invalid scheduler time zone %q: %w", s.cfg.Scheduler.TimeZone, err)
	}

	cl := cronLogger{log: s.logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	baseCtx, cancel := context.WithCancel(ctx)
	for _, taskType := range s.order {
		task := s.tasks[taskType]
		if task.schedule == "" {
			continue
		}
		taskType := taskType
		id, err := c.AddFunc(task.schedule, func() {
			if _, err := s.run(baseCtx, taskType, entity.TriggerSchedule); err != nil && !errors.Is(err, ErrTaskAlreadyRunning) {
				s.logger.Error("Scheduled task failed", logger.StringField("task_type", string(taskType)), logger.ErrorField(err))
			}
		})
		if err != nil {
			cancel()
			return fmt.Errorf("invalid schedule %q for %s: %w", task.schedule, taskType, err)
		}
		task.entryID = id
	}

	c.Start()
	s.cron = c
	s.cancel = cancel
	s.logger.Info("Scheduler started", logger.IntField("tasks", len(c.Entries())))
	return nil
}

// Stop stops scheduling and waits for running sweeps. When ctx ends first they are cancelled.
func (s *schedulerService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cron == nil {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	stopped := c.Stop()
	defer cancel()

	select {
	case <-stopped.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out, cancelling running sweeps")
		return ctx.Err()
	}
}

func (s *schedulerService) Status() dto.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := dto.SchedulerStatus{
		Running: s.cron != nil,
		Now:     utils.TimeIn(s.clock.Now(), s.cfg.Scheduler.TimeZone),
		Tasks:   make([]dto.TaskState, 0, len(s.order)),
	}
	for _, taskType := range s.order {
		task := s.tasks[taskType]
		state := dto.TaskState{
			Type:       string(taskType),
			Schedule:   task.schedule,
			LastRun:    task.lastRun,
			LastStatus: string(task.lastStatus),
			Running:    task.running,
		}
		if s.cron != nil && task.entryID != 0 {
			if next := s.cron.Entry(task.entryID).Next; !next.IsZero() {
				state.NextRun = &next
			}
		}
		status.Tasks = append(status.Tasks, state)
	}
	return status
}

func (s *schedulerService) RunNow(ctx context.Context, taskType entity.TaskType) (*entity.TaskExecutionHistory, error) {
	if _, ok := s.tasks[taskType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, taskType)
	}
	// a manual sweep outlives the HTTP request that started it
	return s.run(context.WithoutCancel(ctx), taskType, entity.TriggerManual)
}

func (s *schedulerService) run(ctx context.Context, taskType entity.TaskType, trigger entity.TaskTrigger) (*entity.TaskExecutionHistory, error) {
	task := s.tasks[taskType]

	s.mu.Lock()
	if task.running {
		s.mu.Unlock()
		return nil, ErrTaskAlreadyRunning
	}
	task.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		task.running = false
		s.mu.Unlock()
	}()

	runID := uuid.NewString()
	ctx = logger.WithFields(ctx,
		logger.StringField("task_type", string(taskType)),
		logger.StringField("run_id", runID))
	ctx = strategy.WithRunID(ctx, runID)

	history := &entity.TaskExecutionHistory{
		TaskType:  taskType,
		RunID:     runID,
		Trigger:   trigger,
		Status:    entity.StatusRunning,
		StartedAt: s.clock.Now(),
	}

	if s.locker != nil {
		token, ok, err := s.locker.AcquireLock(ctx, task.lockKey, s.cfg.Scheduler.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire lock for %s: %w", taskType, err)
		}
		if !ok {
			s.logger.InfoContext(ctx, "Task is running on another instance, skipped")
			history.Status = entity.StatusSkipped
			history.CompletedAt = sql.NullTime{Time: s.clock.Now(), Valid: true}
			if err := s.historyRepo.Create(ctx, history); err != nil {
				s.logger.ErrorContext(ctx, "Failed to create task history", logger.ErrorField(err))
			}
			s.finish(task, history)
			return history, nil
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), task.lockKey, token); err != nil {
				s.logger.WarnContext(ctx, "Failed to release task lock", logger.ErrorField(err))
			}
		}()
	}

	if err := s.historyRepo.Create(ctx, history); err != nil {
		s.logger.ErrorContext(ctx, "Failed to create task history", logger.ErrorField(err))
		return nil, err
	}

	s.logger.InfoContext(ctx, "Processing task", logger.Field("history_id", history.ID))
	execCtx, cancelExec := context.WithTimeout(ctx, task.timeout)
	defer cancelExec()

	s.executeAndUpdate(execCtx, task, history)
	s.finish(task, history)
	return history, nil
}

func (s *schedulerService) executeAndUpdate(ctx context.Context, task *scheduledTask, history *entity.TaskExecutionHistory) {
	start := time.Now()
	output, err := task.strategy.Execute(ctx)
	taskName := string(history.TaskType)
	metrics.SweepDuration.WithLabelValues(taskName).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.ErrorContext(ctx, "Task execution failed", logger.ErrorField(err), logger.IntField("history_id", int(history.ID)))
		history.Status = entity.StatusFailed
		history.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		if s.dispatcher != nil {
			s.dispatcher.Alert(ctx, "sweep "+taskName, err, history.RunID)
		}
	} else {
		s.logger.InfoContext(ctx, "Task executed successfully", logger.IntField("history_id", int(history.ID)))
		history.Status = entity.StatusCompleted
	}
	if output != "" {
		history.Output = sql.NullString{String: output, Valid: true}
	}
	history.CompletedAt = sql.NullTime{Time: s.clock.Now(), Valid: true}

	// the history row must be written even if the sweep ran out of time
	if err := s.historyRepo.Update(context.WithoutCancel(ctx), history); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update task history", logger.ErrorField(err), logger.Field("history_id", history.ID))
	}
}

func (s *schedulerService) finish(task *scheduledTask, history *entity.TaskExecutionHistory) {
	metrics.SweepRunsTotal.WithLabelValues(string(history.TaskType), string(history.Status)).Inc()
	s.mu.Lock()
	task.lastRun = utils.ToPointer(history.StartedAt)
	task.lastStatus = history.Status
	s.mu.Unlock()
}

// cronLogger routes robfig/cron logs to zap.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
