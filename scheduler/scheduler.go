// Package scheduler decides when the topology is reconciled: once the
// daemon is ready, then on routing graph notifications or on a fixed poll.
//
// All state lives in a single event loop (Run). Timers, subscriptions and
// fetches only post events back into the loop, tagged with the session they
// belong to, so nothing from a torn-down session can touch the graph.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"wsbr-console/logger"
	"wsbr-console/models"
	"wsbr-console/source"
	"wsbr-console/topology"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	AwaitingInitialData
	Subscribed
	PollingBackoff
	Error
	Inactive
)

var stateNames = [...]string{"idle", "awaiting-initial-data", "subscribed", "polling", "error", "inactive"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Strategy selects how reconciliation is triggered after the first cycle.
type Strategy string

const (
	StrategyNotify Strategy = "notify"
	StrategyPoll   Strategy = "poll"
)

const (
	DefaultRetryDelay   = time.Second
	DefaultPollInterval = time.Second
	DefaultFetchTimeout = 10 * time.Second
)

type Options struct {
	Strategy     Strategy
	RetryDelay   time.Duration // wait between attempts while the daemon is not ready
	PollInterval time.Duration // StrategyPoll cadence
	Debounce     time.Duration // quiet time before a notification burst triggers a cycle; 0 disables
	FetchTimeout time.Duration
}

// Reconciler is the pipeline run by each cycle.
type Reconciler interface {
	Reconcile(props models.Properties) (topology.Ops, error)
	Reset() error
}

// Status is a point-in-time view of the scheduler for callers outside the loop.
type Status struct {
	State     string    `json:"state"`
	Service   string    `json:"service,omitempty"`
	Session   string    `json:"session,omitempty"`
	Cycles    int       `json:"cycles"`
	LastCycle time.Time `json:"lastCycle,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}

type Scheduler struct {
	connector source.Connector
	rec       Reconciler
	opts      Options

	events chan any
	done   chan struct{}

	mu     sync.RWMutex
	status Status
	state  State

	// owned by the loop
	service string
	active  models.ActiveState
	gen     uint64
	sess    *session
}

type session struct {
	id      string
	gen     uint64
	service string
	src     source.RoutingSource
	ctx     context.Context
	cancel  context.CancelFunc
	polling bool

	timer     *time.Timer
	debouncer *debouncer
	inFlight  bool
	pending   bool
}

type selectEvent struct {
	service string
	active  models.ActiveState
}

type activeEvent struct {
	active models.ActiveState
}

type notifyEvent struct{ gen uint64 }

type debouncedEvent struct{ gen uint64 }

type timerEvent struct{ gen uint64 }

type fetchDone struct {
	gen   uint64
	props models.Properties
	err   error
}

func New(connector source.Connector, rec Reconciler, opts Options) *Scheduler {
	if opts.Strategy == "" {
		opts.Strategy = StrategyNotify
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	s := &Scheduler{
		connector: connector,
		rec:       rec,
		opts:      opts,
		events:    make(chan any, 64),
		done:      make(chan struct{}),
		state:     Idle,
	}
	s.status.State = Idle.String()
	return s
}

// Select makes service the target, with its currently known active state.
// An empty service clears the selection.
func (s *Scheduler) Select(service string, active models.ActiveState) {
	s.post(selectEvent{service: service, active: active})
}

// SetActive reports a new active state for the selected service.
func (s *Scheduler) SetActive(active models.ActiveState) {
	s.post(activeEvent{active: active})
}

func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Scheduler) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run processes events until ctx is done, then tears the session down.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			logger.Logger.Info("Scheduler stopped")
			return nil
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Scheduler) handle(ev any) {
	switch e := ev.(type) {
	case selectEvent:
		// re-selecting is the user's way out of Error
		if e.service == s.service && e.active == s.active && s.State() != Error {
			return
		}
		s.service, s.active = e.service, e.active
		s.reevaluate()
	case activeEvent:
		if e.active == s.active {
			return
		}
		s.active = e.active
		s.reevaluate()
	case notifyEvent:
		if sess := s.current(e.gen); sess != nil {
			s.onNotify(sess)
		}
	case debouncedEvent:
		if sess := s.current(e.gen); sess != nil {
			s.startFetch(sess)
		}
	case timerEvent:
		if sess := s.current(e.gen); sess != nil {
			sess.timer = nil
			s.startFetch(sess)
		}
	case fetchDone:
		sess := s.current(e.gen)
		if sess == nil {
			logger.Logger.Debug("Dropped result of a finished session", zap.Uint64("gen", e.gen))
			return
		}
		s.onFetchDone(sess, e)
	}
}

// current returns the live session if gen still refers to it.
func (s *Scheduler) current(gen uint64) *session {
	if s.sess == nil || s.sess.gen != gen {
		return nil
	}
	return s.sess
}

func (s *Scheduler) reevaluate() {
	if s.service == "" || s.active != models.ActiveActive {
		s.teardown()
		if err := s.rec.Reset(); err != nil {
			logger.Logger.Error("Failed to clear topology", zap.Error(err))
		}
		s.setState(Inactive, nil)
		return
	}
	if s.sess != nil && s.sess.service == s.service {
		return
	}
	s.teardown()
	s.startSession()
}

func (s *Scheduler) startSession() {
	s.mu.Lock()
	s.status = Status{State: s.state.String(), Service: s.service}
	s.mu.Unlock()

	src, err := s.connector.Connect(s.service)
	if err != nil {
		logger.Logger.Error("Failed to connect to service", zap.String("service", s.service), zap.Error(err))
		s.setState(Error, err)
		return
	}

	s.gen++
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:      uuid.NewString(),
		gen:     s.gen,
		service: s.service,
		src:     src,
		ctx:     ctx,
		cancel:  cancel,
		polling: s.opts.Strategy == StrategyPoll,
	}
	if s.opts.Debounce > 0 {
		sess.debouncer = newDebouncer(s.opts.Debounce)
	}
	s.sess = sess

	if !sess.polling {
		// subscribe before the first read so no change between the two is lost
		ch, err := src.Subscribe(ctx)
		if err != nil {
			logger.Logger.Warn("No change notifications, falling back to polling",
				zap.String("session", sess.id), zap.Error(err))
			sess.polling = true
		} else {
			go s.forward(sess.gen, ch)
		}
	}

	s.mu.Lock()
	s.status = Status{Service: sess.service, Session: sess.id}
	s.mu.Unlock()
	logger.Logger.Info("Topology session started",
		zap.String("service", sess.service),
		zap.String("session", sess.id),
		zap.Bool("polling", sess.polling))

	s.setState(AwaitingInitialData, nil)
	s.startFetch(sess)
}

func (s *Scheduler) forward(gen uint64, ch <-chan string) {
	for prop := range ch {
		if prop == models.PropRoutingGraph {
			s.post(notifyEvent{gen: gen})
		}
	}
}

func (s *Scheduler) onNotify(sess *session) {
	if sess.polling {
		return
	}
	if sess.debouncer == nil {
		s.startFetch(sess)
		return
	}
	gen := sess.gen
	sess.debouncer.Trigger(func() { s.post(debouncedEvent{gen: gen}) })
}

// startFetch reads the daemon's properties off the loop. A cycle already in
// flight absorbs the request and runs once more when it completes.
func (s *Scheduler) startFetch(sess *session) {
	if sess.inFlight {
		sess.pending = true
		return
	}
	sess.inFlight = true
	sess.pending = false

	gen, src, timeout := sess.gen, sess.src, s.opts.FetchTimeout
	ctx, cancel := context.WithTimeout(sess.ctx, timeout)
	go func() {
		defer cancel()
		props, err := src.Properties(ctx)
		s.post(fetchDone{gen: gen, props: props, err: err})
	}()
}

func (s *Scheduler) onFetchDone(sess *session, res fetchDone) {
	sess.inFlight = false

	err := res.err
	if err == nil {
		var ops topology.Ops
		ops, err = s.rec.Reconcile(res.props)
		if err == nil {
			s.onCycle(sess, ops)
			return
		}
	}

	switch {
	case errors.Is(err, source.ErrNotReady):
		logger.Logger.Debug("Daemon not ready, retrying",
			zap.String("session", sess.id), zap.Duration("delay", s.opts.RetryDelay))
		sess.pending = false
		s.schedule(sess, s.opts.RetryDelay)
	case errors.Is(err, source.ErrSourceInvalid), errors.Is(err, topology.ErrInvalidSnapshot):
		logger.Logger.Error("Could not retrieve network topology",
			zap.String("session", sess.id), zap.Error(err))
		s.teardown()
		if rerr := s.rec.Reset(); rerr != nil {
			logger.Logger.Error("Failed to clear topology", zap.Error(rerr))
		}
		s.setState(Error, err)
	default:
		logger.Logger.Warn("Topology cycle failed, retrying",
			zap.String("session", sess.id), zap.Error(err))
		s.recordError(err)
		sess.pending = false
		s.schedule(sess, s.opts.RetryDelay)
	}
}

func (s *Scheduler) onCycle(sess *session, ops topology.Ops) {
	s.mu.Lock()
	s.status.Cycles++
	s.status.LastCycle = time.Now()
	s.status.LastError = ""
	s.mu.Unlock()

	if ops.Count() > 0 {
		logger.Logger.Info("Topology updated",
			zap.String("session", sess.id),
			zap.Int("added", len(ops.AddNodes)),
			zap.Int("updated", len(ops.UpdateNodes)),
			zap.Int("removed", len(ops.RemoveNodes)))
	}

	if sess.polling {
		s.setState(PollingBackoff, nil)
		s.schedule(sess, s.opts.PollInterval)
		return
	}
	s.setState(Subscribed, nil)
	if sess.pending {
		s.startFetch(sess)
	}
}

// schedule arms the session's single timer, replacing any earlier one.
func (s *Scheduler) schedule(sess *session, d time.Duration) {
	if sess.timer != nil {
		sess.timer.Stop()
	}
	gen := sess.gen
	sess.timer = time.AfterFunc(d, func() { s.post(timerEvent{gen: gen}) })
}

// teardown cancels everything the current session owns.
func (s *Scheduler) teardown() {
	sess := s.sess
	if sess == nil {
		return
	}
	s.sess = nil
	sess.cancel()
	if sess.timer != nil {
		sess.timer.Stop()
	}
	if sess.debouncer != nil {
		sess.debouncer.Cancel()
	}
	if err := sess.src.Close(); err != nil {
		logger.Logger.Warn("Failed to close source", zap.String("session", sess.id), zap.Error(err))
	}
	logger.Logger.Info("Topology session ended", zap.String("session", sess.id))
}

func (s *Scheduler) setState(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.status.State = state.String()
	if state == Inactive {
		s.status = Status{State: state.String(), Service: s.service}
	}
	if err != nil {
		s.status.LastError = err.Error()
	}
}

func (s *Scheduler) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastError = err.Error()
}
