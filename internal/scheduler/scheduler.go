package scheduler

import (
	"context"
	"errors"
	"sort"
	"time"

	"finsync/internal/events"
	"finsync/internal/metrics"
	"finsync/internal/models"
	"finsync/internal/resource"
	"finsync/internal/retry"
	"finsync/internal/syncerr"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config tunes the coordinator loop.
type Config struct {
	TickInterval        time.Duration
	ExecutionTimeout    time.Duration
	GateRecheckInterval time.Duration
	DispatchRate        float64
	DispatchBurst       int
	Settings            models.SyncSettings
	BaseRetry           retry.Policy
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = models.DefaultExecutionTimeout
	}
	if c.GateRecheckInterval <= 0 {
		c.GateRecheckInterval = models.GateRecheckInterval
	}
	if c.DispatchRate <= 0 {
		c.DispatchRate = 10
	}
	if c.DispatchBurst <= 0 {
		c.DispatchBurst = models.DefaultMaxConcurrentSyncs
	}
	if c.Settings.MaxConcurrentSyncs <= 0 {
		c.Settings.MaxConcurrentSyncs = models.DefaultMaxConcurrentSyncs
	}
	if c.Settings.LowBatteryThreshold <= 0 {
		c.Settings.LowBatteryThreshold = models.DefaultLowBatteryThreshold
	}
	if c.BaseRetry.MaxRetries <= 0 {
		c.BaseRetry = retry.DefaultPolicy()
	}
	return c
}

// Scheduler coordinates periodic sync tasks. A single goroutine started by
// Start owns the task registry; every mutation flows through the command
// channel, so scheduling metadata is never shared mutable state.
type Scheduler struct {
	cfg      Config
	provider resource.Provider
	bus      *events.EventBus
	logger   zerolog.Logger
	limiter  *rate.Limiter
	now      func() time.Time

	cmds        chan command
	completions chan completion
	done        chan struct{}
}

// New builds a Scheduler. The bus may be nil when nothing consumes reports.
func New(cfg Config, provider resource.Provider, bus *events.EventBus, logger *zerolog.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "scheduler").Logger()
	}
	return &Scheduler{
		cfg:         cfg,
		provider:    provider,
		bus:         bus,
		logger:      l,
		limiter:     rate.NewLimiter(rate.Limit(cfg.DispatchRate), cfg.DispatchBurst),
		now:         time.Now,
		cmds:        make(chan command, 64),
		completions: make(chan completion, 128),
		done:        make(chan struct{}),
	}
}

type cmdKind int

const (
	cmdSchedule cmdKind = iota
	cmdCancel
	cmdPause
	cmdResume
	cmdSettings
	cmdStatus
)

type command struct {
	kind     cmdKind
	task     models.SyncTask
	id       string
	settings models.SyncSettings
	reply    chan Status
}

type completion struct {
	id      string
	gen     uint64
	result  models.SyncResult
	err     error
	started time.Time
}

// scheduledTask is the coordinator-private runtime wrapper around a SyncTask.
// It is created and destroyed 1:1 with its registration and never leaves the
// loop goroutine.
type scheduledTask struct {
	task       models.SyncTask
	next       time.Time
	retryCount int
	lastResult *models.SyncResult
	gen        uint64
	cancel     context.CancelFunc
}

type engineState struct {
	ctx       context.Context
	tasks     map[string]*scheduledTask
	running   map[string]uint64
	settings  models.SyncSettings
	resource  models.ResourceState
	paused    bool
	suspended bool
	lastSync  time.Time
	genSeq    uint64
}

var errTaskInvalid = errors.New("sync task needs an id and an executor")

// Schedule registers or replaces a task. Idempotent on task id: re-registering
// the same id replaces the previous registration and restarts its schedule.
func (s *Scheduler) Schedule(task models.SyncTask) error {
	if task.ID == "" || task.Execute == nil {
		return errTaskInvalid
	}
	if task.Interval <= 0 {
		task.Interval = models.DefaultInterval(task.Category)
	}
	s.post(command{kind: cmdSchedule, task: task})
	return nil
}

// Cancel removes a task and aborts any in-flight execution. No-op when the id
// is unknown.
func (s *Scheduler) Cancel(taskID string) {
	s.post(command{kind: cmdCancel, id: taskID})
}

// PauseAll suspends execution globally without forgetting registrations.
// Idempotent.
func (s *Scheduler) PauseAll() {
	s.post(command{kind: cmdPause})
}

// ResumeAll restarts execution. Each task's next time is recomputed from the
// adaptive interval; missed runs are not replayed. Idempotent.
func (s *Scheduler) ResumeAll() {
	s.post(command{kind: cmdResume})
}

// UpdateSettings applies new resource settings immediately and recomputes
// every task's next execution time.
func (s *Scheduler) UpdateSettings(settings models.SyncSettings) {
	s.post(command{kind: cmdSettings, settings: settings})
}

// Status returns a snapshot of the coordinator state. It never blocks on I/O;
// after shutdown it returns the zero Status.
func (s *Scheduler) Status() Status {
	reply := make(chan Status, 1)
	select {
	case s.cmds <- command{kind: cmdStatus, reply: reply}:
	case <-s.done:
		return Status{}
	}
	select {
	case st := <-reply:
		return st
	case <-s.done:
		return Status{}
	}
}

func (s *Scheduler) post(cmd command) {
	select {
	case s.cmds <- cmd:
	case <-s.done:
	}
}

// Start runs the coordinator loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	es := &engineState{
		ctx:      ctx,
		tasks:    make(map[string]*scheduledTask),
		running:  make(map[string]uint64),
		settings: s.cfg.Settings,
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info().Dur("tick", s.cfg.TickInterval).Msg("sync scheduler started")
	defer s.logger.Info().Msg("sync scheduler stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds:
			s.handleCommand(es, cmd)
		case c := <-s.completions:
			s.handleCompletion(es, c)
		case <-ticker.C:
			s.tick(es)
		}
	}
}

func (s *Scheduler) handleCommand(es *engineState, cmd command) {
	switch cmd.kind {
	case cmdSchedule:
		now := s.now()
		st := &scheduledTask{
			task: cmd.task,
			next: now.Add(effectiveInterval(cmd.task, es.settings)),
		}
		if prev, ok := es.tasks[cmd.task.ID]; ok && prev.cancel != nil {
			prev.cancel()
		}
		es.tasks[cmd.task.ID] = st
		metrics.SetActiveTasks(len(es.tasks))
		s.logger.Info().
			Str("task_id", cmd.task.ID).
			Str("category", string(cmd.task.Category)).
			Time("next", st.next).
			Msg("task scheduled")

	case cmdCancel:
		st, ok := es.tasks[cmd.id]
		if !ok {
			return
		}
		if st.cancel != nil {
			st.cancel()
		}
		delete(es.tasks, cmd.id)
		metrics.SetActiveTasks(len(es.tasks))
		s.logger.Info().Str("task_id", cmd.id).Msg("task canceled")

	case cmdPause:
		if !es.paused {
			es.paused = true
			s.logger.Info().Msg("sync paused")
		}

	case cmdResume:
		if es.paused {
			es.paused = false
			now := s.now()
			for _, st := range es.tasks {
				st.next = laterOf(st.next, now.Add(effectiveInterval(st.task, es.settings)))
			}
			s.logger.Info().Msg("sync resumed")
		}

	case cmdSettings:
		es.settings = normalizeSettings(cmd.settings)
		now := s.now()
		for _, st := range es.tasks {
			st.next = laterOf(st.next, now.Add(effectiveInterval(st.task, es.settings)))
		}
		s.logger.Info().
			Bool("wifi_only", es.settings.SyncOnWifiOnly).
			Bool("reduced_frequency", es.settings.ReducedFrequencyMode).
			Int("max_concurrent", es.settings.MaxConcurrentSyncs).
			Msg("resource settings updated")

	case cmdStatus:
		cmd.reply <- s.snapshot(es)
	}
}

func (s *Scheduler) tick(es *engineState) {
	if s.provider != nil {
		es.resource = s.provider.Current()
	}

	suspended := es.settings.PauseOnLowBattery &&
		!es.resource.Charging &&
		es.resource.BatteryPercent <= es.settings.LowBatteryThreshold
	if suspended && !es.suspended {
		s.logger.Warn().Int("battery", es.resource.BatteryPercent).Msg("low battery, sync suspended")
	}
	es.suspended = suspended

	if es.paused || es.suspended {
		return
	}

	now := s.now()
	for _, st := range s.dueTasks(es, now) {
		if len(es.running) >= es.settings.MaxConcurrentSyncs {
			break
		}
		if ok, reason := shouldExecute(st.task, es.resource, es.settings); !ok {
			// Gating is not a failure: reschedule without touching retryCount.
			st.next = laterOf(st.next, now.Add(s.cfg.GateRecheckInterval))
			s.logger.Debug().
				Str("task_id", st.task.ID).
				Str("reason", reason).
				Time("next", st.next).
				Msg("task gated")
			continue
		}
		if !s.limiter.Allow() {
			break
		}
		s.dispatch(es, st)
	}
}

func (s *Scheduler) dueTasks(es *engineState, now time.Time) []*scheduledTask {
	var due []*scheduledTask
	for id, st := range es.tasks {
		if _, inFlight := es.running[id]; inFlight {
			continue
		}
		if !st.next.After(now) {
			due = append(due, st)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].task.Priority != due[j].task.Priority {
			return due[i].task.Priority > due[j].task.Priority
		}
		return due[i].next.Before(due[j].next)
	})
	return due
}

func (s *Scheduler) dispatch(es *engineState, st *scheduledTask) {
	es.genSeq++
	gen := es.genSeq
	st.gen = gen
	es.running[st.task.ID] = gen
	metrics.SetInFlight(len(es.running))

	cctx, cancel := context.WithTimeout(es.ctx, s.cfg.ExecutionTimeout)
	st.cancel = cancel

	id := st.task.ID
	exec := st.task.Execute
	started := s.now()

	s.logger.Debug().Str("task_id", id).Msg("task dispatched")

	go func() {
		defer cancel()

		outcome := make(chan completion, 1)
		go func() {
			res, err := exec(cctx)
			outcome <- completion{id: id, gen: gen, result: res, err: err, started: started}
		}()

		select {
		case c := <-outcome:
			s.deliver(c)
		case <-cctx.Done():
			// The executor may still be running; it must tolerate being
			// abandoned mid-flight. For retry accounting this run failed.
			err := cctx.Err()
			if errors.Is(err, context.DeadlineExceeded) {
				err = syncerr.Timeout("execution exceeded timeout", err)
			}
			s.deliver(completion{id: id, gen: gen, err: err, started: started})
		}
	}()
}

func (s *Scheduler) deliver(c completion) {
	select {
	case s.completions <- c:
	case <-s.done:
	}
}

func (s *Scheduler) handleCompletion(es *engineState, c completion) {
	gen, ok := es.running[c.id]
	if !ok || gen != c.gen {
		// Stale result from an abandoned or replaced execution.
		return
	}
	delete(es.running, c.id)
	metrics.SetInFlight(len(es.running))

	st, ok := es.tasks[c.id]
	if !ok || st.gen != c.gen {
		// Task was canceled or replaced while this run was in flight.
		return
	}
	st.cancel = nil

	elapsed := s.now().Sub(c.started)
	if c.err == nil && c.result.Success {
		s.handleSuccess(es, st, c.result, elapsed)
		return
	}

	err := c.err
	if err == nil {
		msg := c.result.Message
		if msg == "" {
			msg = "executor reported failure"
		}
		err = syncerr.New(syncerr.KindUnknown, msg, nil)
	}
	if errors.Is(err, context.Canceled) {
		// Shutdown in progress; leave the task untouched.
		return
	}
	var se *syncerr.Error
	if !errors.As(err, &se) && errors.Is(err, context.DeadlineExceeded) {
		err = syncerr.Timeout("execution exceeded timeout", err)
	}
	s.handleFailure(es, st, err, elapsed)
}

func (s *Scheduler) handleSuccess(es *engineState, st *scheduledTask, res models.SyncResult, elapsed time.Duration) {
	now := s.now()
	st.retryCount = 0
	st.lastResult = &res
	es.lastSync = now

	next := now.Add(effectiveInterval(st.task, es.settings))
	if res.NextSyncHint != nil && res.NextSyncHint.After(now) {
		next = *res.NextSyncHint
	}
	st.next = laterOf(st.next, next)

	metrics.ObserveSyncRun(string(st.task.Category), "success", elapsed)
	s.logger.Info().
		Str("task_id", st.task.ID).
		Dur("elapsed", elapsed).
		Bool("data_updated", res.DataUpdated).
		Time("next", st.next).
		Msg("sync completed")

	_ = s.bus.PublishJSON(events.EventSyncCompleted, events.SyncReportPayload{
		TaskID:      st.task.ID,
		Category:    string(st.task.Category),
		Priority:    st.task.Priority.String(),
		Success:     true,
		Message:     res.Message,
		DataUpdated: res.DataUpdated,
		At:          now,
	})
}

func (s *Scheduler) handleFailure(es *engineState, st *scheduledTask, err error, elapsed time.Duration) {
	now := s.now()
	st.lastResult = &models.SyncResult{Success: false, Message: err.Error()}
	kind := syncerr.KindOf(err)

	metrics.ObserveSyncRun(string(st.task.Category), "failure", elapsed)
	_ = s.bus.PublishJSON(events.EventSyncFailed, events.SyncReportPayload{
		TaskID:     st.task.ID,
		Category:   string(st.task.Category),
		Priority:   st.task.Priority.String(),
		Error:      err.Error(),
		RetryCount: st.retryCount,
		At:         now,
	})

	if !syncerr.Retryable(err) {
		if kind == syncerr.KindAuth {
			// Fatal: surfaced immediately so the app can prompt for re-auth.
			_ = s.bus.PublishJSON(events.EventReauthRequired, events.SyncReportPayload{
				TaskID:   st.task.ID,
				Category: string(st.task.Category),
				Priority: st.task.Priority.String(),
				Error:    err.Error(),
				At:       now,
			})
		}
		s.logger.Error().Err(err).Str("task_id", st.task.ID).Str("kind", kind.String()).Msg("fatal sync error")
		s.exhaust(es, st, err)
		return
	}

	st.retryCount++
	metrics.IncRetry(string(st.task.Category))

	if st.retryCount >= s.maxRetries(st.task) {
		s.exhaust(es, st, err)
		return
	}

	delay := s.policyFor(st.task).NextDelay(st.retryCount)
	if hint, ok := syncerr.RetryAfterHint(err); ok {
		delay = hint
	}
	st.next = laterOf(st.next, now.Add(delay))
	s.logger.Warn().
		Err(err).
		Str("task_id", st.task.ID).
		Int("retry", st.retryCount).
		Time("next", st.next).
		Msg("sync failed, retry scheduled")
}

// exhaust handles a task whose retry budget is spent (or that hit a fatal
// error). CRITICAL tasks are never dropped: they cool down and re-enter the
// schedule with a fresh budget. Everything else is deregistered and reported.
func (s *Scheduler) exhaust(es *engineState, st *scheduledTask, err error) {
	now := s.now()

	if st.task.Priority == models.PriorityCritical {
		st.retryCount = 0
		st.next = laterOf(st.next, now.Add(models.CriticalRetryCooldown))
		s.logger.Warn().
			Str("task_id", st.task.ID).
			Time("next", st.next).
			Msg("critical task exhausted retries, cooling down")
		return
	}

	delete(es.tasks, st.task.ID)
	metrics.SetActiveTasks(len(es.tasks))
	s.logger.Error().Err(err).Str("task_id", st.task.ID).Msg("task dropped after exhausting retries")

	_ = s.bus.PublishJSON(events.EventTaskDropped, events.SyncReportPayload{
		TaskID:   st.task.ID,
		Category: string(st.task.Category),
		Priority: st.task.Priority.String(),
		Error:    err.Error(),
		At:       now,
	})
}

func (s *Scheduler) maxRetries(task models.SyncTask) int {
	if task.MaxRetries > 0 {
		return task.MaxRetries
	}
	return s.cfg.BaseRetry.MaxRetries
}

func (s *Scheduler) policyFor(task models.SyncTask) retry.Policy {
	p := s.cfg.BaseRetry
	p.MaxRetries = s.maxRetries(task)
	if task.BackoffMultiplier > 0 {
		p.BackoffFactor = task.BackoffMultiplier
	}
	return p
}

func normalizeSettings(settings models.SyncSettings) models.SyncSettings {
	if settings.MaxConcurrentSyncs <= 0 {
		settings.MaxConcurrentSyncs = models.DefaultMaxConcurrentSyncs
	}
	if settings.LowBatteryThreshold <= 0 {
		settings.LowBatteryThreshold = models.DefaultLowBatteryThreshold
	}
	return settings
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
