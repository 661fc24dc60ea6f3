package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/keepwarm/internal/domain"
	"github.com/hamed0406/keepwarm/internal/probe"
	"github.com/hamed0406/keepwarm/internal/registry"
	"github.com/hamed0406/keepwarm/internal/status"
)

const notifyTimeout = 10 * time.Second

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

type Options struct {
	HistorySize    int
	DefaultTimeout time.Duration // applied when a spec has no timeout
	Notifier       Notifier      // optional; receives worker faults
	Delay          DelayFunc     // defaults to RandomDelay
}

// SeedTarget is an initial target definition, optionally started right away.
type SeedTarget struct {
	Spec      domain.TargetSpec
	AutoStart bool
}

// Scheduler owns the registry, the status store and the live workers.
//
// Control operations on one id are serialized by a per-id lock. mu guards the
// workers map and every registry state transition, so "state is Running" and
// "a worker exists" always change together.
type Scheduler struct {
	log      *zap.Logger
	checker  probe.Checker
	reg      *registry.Registry
	store    *status.Store
	notifier Notifier
	delay    DelayFunc
	timeout  time.Duration

	mu      sync.Mutex
	workers map[domain.TargetID]*worker

	locksMu sync.Mutex
	locks   map[domain.TargetID]*idLock
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

func New(logger *zap.Logger, checker probe.Checker, opts Options) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Delay == nil {
		opts.Delay = RandomDelay
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 10 * time.Second
	}
	return &Scheduler{
		log:      logger,
		checker:  checker,
		reg:      registry.New(),
		store:    status.New(opts.HistorySize),
		notifier: opts.Notifier,
		delay:    opts.Delay,
		timeout:  opts.DefaultTimeout,
		workers:  make(map[domain.TargetID]*worker),
		locks:    make(map[domain.TargetID]*idLock),
	}
}

// AddTarget registers a new target in state Stopped.
func (s *Scheduler) AddTarget(spec domain.TargetSpec) (domain.Target, error) {
	if spec.TimeoutMS == 0 {
		spec.TimeoutMS = s.timeout.Milliseconds()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.reg.Add(spec)
	if err != nil {
		return domain.Target{}, err
	}
	s.store.Track(t.ID)
	s.log.Info("target_added",
		zap.String("target_id", string(t.ID)),
		zap.String("url", t.URL),
		zap.Int64("min_interval_ms", t.MinIntervalMS),
		zap.Int64("max_interval_ms", t.MaxIntervalMS),
	)
	return t, nil
}

// RemoveTarget stops the target if it is running, then deletes it.
func (s *Scheduler) RemoveTarget(id domain.TargetID) error {
	unlock := s.lockID(id)
	defer unlock()

	if err := s.stopLocked(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.Remove(id); err != nil {
		return err
	}
	s.store.Drop(id)
	s.log.Info("target_removed", zap.String("target_id", string(id)))
	return nil
}

// Start spawns the worker of id. Starting a running target is a no-op.
func (s *Scheduler) Start(id domain.TargetID) error {
	unlock := s.lockID(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.reg.Get(id)
	if err != nil {
		return err
	}
	if _, running := s.workers[id]; running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		target:  t,
		checker: s.checker,
		out:     s.store,
		delay:   s.delay,
		log:     s.log.With(zap.String("target_id", string(id)), zap.String("url", t.URL)),
		onFault: s.reportFault,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.workers[id] = w
	if err := s.reg.SetState(id, domain.StateRunning); err != nil {
		delete(s.workers, id)
		cancel()
		return err
	}
	go w.run(ctx, s.reap)
	return nil
}

// Stop cancels the worker of id and returns once it has fully exited.
// Stopping a stopped target is a no-op.
func (s *Scheduler) Stop(id domain.TargetID) error {
	unlock := s.lockID(id)
	defer unlock()
	return s.stopLocked(id)
}

func (s *Scheduler) stopLocked(id domain.TargetID) error {
	s.mu.Lock()
	if _, err := s.reg.Get(id); err != nil {
		s.mu.Unlock()
		return err
	}
	w := s.workers[id]
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	w.cancel()
	<-w.done
	return nil
}

// reap clears the slot of an exiting worker. Every worker calls it on its way
// out, whether it was cancelled or faulted.
func (s *Scheduler) reap(w *worker) {
	w.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	id := w.target.ID
	if s.workers[id] != w {
		return
	}
	delete(s.workers, id)
	if err := s.reg.SetState(id, domain.StateStopped); err != nil {
		s.log.Warn("reap_set_state", zap.String("target_id", string(id)), zap.Error(err))
	}
}

func (s *Scheduler) reportFault(o domain.PingOutcome) {
	if s.notifier == nil {
		return
	}
	url := ""
	if t, err := s.reg.Get(o.TargetID); err == nil {
		url = t.URL
	}
	text := fmt.Sprintf("Target: %s\nURL: %s\nError: %s\nAt: %s",
		o.TargetID, url, o.ErrorMessage, o.Timestamp.Format(time.RFC3339))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Send(ctx, "Worker fault", text); err != nil {
			s.log.Warn("notify_failed", zap.String("target_id", string(o.TargetID)), zap.Error(err))
		}
	}()
}

// StartAll starts every registered target.
func (s *Scheduler) StartAll() error {
	var errs error
	for _, t := range s.reg.List() {
		if err := s.Start(t.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// StopAll stops every running target concurrently and waits for all of them.
func (s *Scheduler) StopAll() error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, t := range s.reg.List() {
		wg.Add(1)
		go func(id domain.TargetID) {
			defer wg.Done()
			if err := s.Stop(id); err != nil && !errors.Is(err, domain.ErrNotFound) {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(t.ID)
	}
	wg.Wait()
	return errs
}

// Seed adds the given targets, starting those marked AutoStart. Invalid
// entries are skipped and reported together in the returned error.
func (s *Scheduler) Seed(targets []SeedTarget) ([]domain.Target, error) {
	var (
		added []domain.Target
		errs  error
	)
	for i, st := range targets {
		t, err := s.AddTarget(st.Spec)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("target %d (%s): %w", i, st.Spec.URL, err))
			continue
		}
		if st.AutoStart {
			if err := s.Start(t.ID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("start %s: %w", t.ID, err))
				continue
			}
			t.State = domain.StateRunning
		}
		added = append(added, t)
	}
	return added, errs
}

// Shutdown stops all workers, giving up when ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.StopAll() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Get(id domain.TargetID) (domain.Target, error) {
	return s.reg.Get(id)
}

func (s *Scheduler) List() []domain.Target {
	return s.reg.List()
}

// Status returns the target with its latest outcome and full history.
func (s *Scheduler) Status(id domain.TargetID) (domain.TargetStatus, error) {
	t, err := s.reg.Get(id)
	if err != nil {
		return domain.TargetStatus{}, err
	}
	return s.statusOf(t), nil
}

func (s *Scheduler) StatusAll() []domain.TargetStatus {
	ts := s.reg.List()
	out := make([]domain.TargetStatus, 0, len(ts))
	for _, t := range ts {
		out = append(out, s.statusOf(t))
	}
	return out
}

func (s *Scheduler) statusOf(t domain.Target) domain.TargetStatus {
	st := domain.TargetStatus{Target: t, History: []domain.PingOutcome{}}
	if h, ok := s.store.History(t.ID, 0); ok {
		st.History = h
	}
	if n := len(st.History); n > 0 {
		latest := st.History[n-1]
		st.Latest = &latest
	}
	return st
}

// History returns up to limit recent outcomes of id, oldest first.
func (s *Scheduler) History(id domain.TargetID, limit int) ([]domain.PingOutcome, error) {
	if _, err := s.reg.Get(id); err != nil {
		return nil, err
	}
	h, _ := s.store.History(id, limit)
	if h == nil {
		h = []domain.PingOutcome{}
	}
	return h, nil
}

// Recent returns the last n outcomes across all targets.
func (s *Scheduler) Recent(n int) []domain.PingOutcome {
	if r := s.store.Recent(n); r != nil {
		return r
	}
	return []domain.PingOutcome{}
}

func (s *Scheduler) Subscribe(buffer int) (<-chan domain.PingOutcome, func()) {
	return s.store.Subscribe(buffer)
}

// Running reports how many workers are live.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

func (s *Scheduler) lockID(id domain.TargetID) func() {
	s.locksMu.Lock()
	l := s.locks[id]
	if l == nil {
		l = &idLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}
