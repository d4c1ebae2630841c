package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/sessiongate/internal/automation"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessiongate/internal/shared/utils"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Storage removes the persisted browser profile of a session
type Storage interface {
	Path(sessionID string) (string, error)
	Delete(sessionID string) error
}

// Config configures the manager
type Config struct {
	// Workers bounds concurrent pairing handshakes
	Workers int
	// Launch is passed to the driver for every handshake
	Launch automation.LaunchOptions
	// CloseTimeout bounds closing one client on delete or shutdown
	CloseTimeout time.Duration
}

// DefaultConfig returns the default manager configuration
func DefaultConfig() Config {
	return Config{
		Workers: 64,
		Launch: automation.LaunchOptions{
			Headless:    true,
			BrowserArgs: []string{"--no-sandbox", "--disable-setuid-sandbox", "--headless=new"},
		},
		CloseTimeout: 30 * time.Second,
	}
}

// ConnectionStatus is a paired client's transport state. A failed query is
// reported as State "ERROR" with the failure in Error.
type ConnectionStatus struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// ConnectionError is the state reported when the client could not be queried
const ConnectionError = "ERROR"

// Manager drives sessions through their lifecycle
type Manager struct {
	registry *Registry
	hub      *Hub
	driver   automation.Driver
	storage  Storage
	pool     *ants.Pool
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	cfg      Config
	now      func() time.Time

	// ctx bounds every handshake; cancelled by Shutdown
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	// lifecycle orders handshake launches against Shutdown
	lifecycle sync.RWMutex
	stopped   bool
}

// NewManager creates a session manager. storage may be nil.
func NewManager(driver automation.Driver, storage Storage, logger *zap.Logger, cfg Config) (*Manager, error) {
	if driver == nil {
		return nil, errors.New("session manager requires an automation driver")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultConfig().CloseTimeout
	}

	logger = logger.Named("session")
	pool, err := ants.NewPool(cfg.Workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			logger.Error("handshake worker panicked", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create handshake pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		registry: NewRegistry(),
		hub:      NewHub(),
		driver:   driver,
		storage:  storage,
		pool:     pool,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Create reserves a session and starts its pairing handshake without
// waiting for it. If a live record already exists it is returned unchanged
// and created is false.
func (m *Manager) Create(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	if err := utils.ValidateSessionID(sessionID); err != nil {
		return Snapshot{}, false, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if m.isShutdown() {
		return Snapshot{}, false, ErrShutdown
	}

	rec, created := m.registry.GetOrCreate(sessionID, func() *Record {
		return newRecord(sessionID, m.now())
	})
	if !created {
		return rec.Snapshot(), false, nil
	}

	if m.metrics != nil {
		m.metrics.IncSessionsCreated()
	}
	m.logger.Info("session created",
		zap.String("session", sessionID),
		zap.String("generation", rec.Generation.String()))

	m.launch(rec)
	return rec.Snapshot(), true, nil
}

// launch moves a fresh record to AWAITING_PAIRING and hands its handshake
// to the worker pool. The handshake runs under its own context, cancelled
// when the record is closed.
func (m *Manager) launch(rec *Record) {
	ctx, cancel := context.WithCancel(m.ctx)

	rec.mu.Lock()
	if rec.state != StateInitializing {
		// Deleted before the handshake could start.
		rec.mu.Unlock()
		cancel()
		return
	}
	rec.state = StateAwaitingPairing
	rec.cancel = cancel
	rec.updatedAt = m.now()
	rec.mu.Unlock()
	m.reportStates()

	started := m.now()

	m.lifecycle.RLock()
	if m.stopped {
		m.lifecycle.RUnlock()
		cancel()
		m.fail(rec, fmt.Errorf("%w: %w", ErrHandshakeFailed, ErrShutdown), started)
		return
	}
	m.inflight.Add(1)
	m.lifecycle.RUnlock()

	err := m.pool.Submit(func() {
		defer m.inflight.Done()
		defer cancel()
		m.handshake(ctx, rec, started)
	})
	if err != nil {
		m.inflight.Done()
		cancel()
		m.fail(rec, fmt.Errorf("%w: handshake capacity exhausted: %w", ErrHandshakeFailed, err), started)
	}
}

// handshake runs one pairing handshake to completion on a pool worker
func (m *Manager) handshake(ctx context.Context, rec *Record, started time.Time) {
	opts := m.cfg.Launch
	opts.BrowserArgs = append([]string(nil), m.cfg.Launch.BrowserArgs...)
	opts.Generation = rec.Generation.String()
	if m.storage != nil {
		if dir, err := m.storage.Path(rec.ID); err == nil {
			opts.ProfileDir = dir
		}
	}

	client, err := m.driver.Initialize(ctx, rec.ID, opts, func(artifact string) {
		m.applyArtifact(rec, artifact)
	})
	if err != nil {
		m.fail(rec, err, started)
		return
	}
	m.ready(rec, client, started)
}

// owns reports whether rec is still the registered record for its id.
// Callers must not hold rec.mu.
func (m *Manager) owns(rec *Record) bool {
	current, ok := m.registry.Get(rec.ID)
	return ok && current == rec
}

// applyArtifact stores a pairing artifact on a record awaiting pairing.
// Anything else (ready, failed, closed, replaced) discards it.
func (m *Manager) applyArtifact(rec *Record, artifact string) {
	log := m.logger.With(zap.String("session", rec.ID))
	if artifact == "" {
		return
	}
	if !m.owns(rec) {
		log.Debug("discarding pairing artifact for removed session")
		return
	}

	rec.mu.Lock()
	if rec.state != StateAwaitingPairing {
		state := rec.state
		rec.mu.Unlock()
		log.Debug("discarding pairing artifact", zap.Stringer("state", state))
		return
	}
	rec.artifact = artifact
	rec.artifactCount++
	rec.updatedAt = m.now()
	count := rec.artifactCount
	rec.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncPairingArtifacts()
	}
	m.hub.Publish(Event{
		Type:      EventArtifact,
		Session:   rec.ID,
		State:     StateAwaitingPairing,
		QR:        artifact,
		Timestamp: m.now(),
	})
	log.Info("QR Code generated for session", zap.Int("attempt", count))
}

// ready attaches a paired client. A record that was removed meanwhile is
// left alone and the orphaned client is closed.
func (m *Manager) ready(rec *Record, client automation.Client, started time.Time) {
	log := m.logger.With(zap.String("session", rec.ID), zap.String("generation", rec.Generation.String()))

	applied := false
	if m.owns(rec) {
		rec.mu.Lock()
		if rec.state == StateAwaitingPairing {
			rec.state = StateReady
			rec.client = client
			rec.lastError = ""
			rec.updatedAt = m.now()
			applied = true
		}
		rec.mu.Unlock()
	}

	if !applied {
		m.recordHandshake(monitoring.OutcomeDiscarded, started)
		log.Info("discarding client of removed session")
		m.closeClient(rec.ID, client)
		return
	}

	m.recordHandshake(monitoring.OutcomeReady, started)
	m.reportStates()
	m.hub.Publish(Event{Type: EventReady, Session: rec.ID, State: StateReady, Timestamp: m.now()})
	log.Info("client ready for session", zap.Duration("elapsed", m.now().Sub(started)))
}

// fail records a handshake failure on a record awaiting pairing
func (m *Manager) fail(rec *Record, cause error, started time.Time) {
	log := m.logger.With(zap.String("session", rec.ID), zap.String("generation", rec.Generation.String()))

	applied := false
	msg := cause.Error()
	if m.owns(rec) {
		rec.mu.Lock()
		if rec.state == StateAwaitingPairing {
			rec.state = StateFailed
			rec.client = nil
			rec.lastError = msg
			rec.updatedAt = m.now()
			applied = true
		}
		rec.mu.Unlock()
	}

	if !applied {
		m.recordHandshake(monitoring.OutcomeDiscarded, started)
		log.Debug("discarding handshake failure of removed session", zap.Error(cause))
		return
	}

	m.recordHandshake(monitoring.OutcomeFailed, started)
	m.reportStates()
	m.hub.Publish(Event{Type: EventFailed, Session: rec.ID, State: StateFailed, Error: msg, Timestamp: m.now()})
	log.Error("Error initializing session", zap.Error(cause))
}

// SendMessage sends text to mobile through a paired session and returns the
// automation's delivery result unchanged. It makes a single attempt.
func (m *Manager) SendMessage(ctx context.Context, sessionID, mobile, text string) (json.RawMessage, error) {
	if err := utils.ValidateMobile(mobile); err != nil {
		m.recordMessage(monitoring.SendRejected)
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := utils.ValidateMessage(text); err != nil {
		m.recordMessage(monitoring.SendRejected)
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	rec, ok := m.registry.Get(sessionID)
	if !ok {
		m.recordMessage(monitoring.SendRejected)
		return nil, fmt.Errorf("%w: session %s does not exist", ErrServiceUnavailable, sessionID)
	}

	rec.mu.Lock()
	state, client, lastErr := rec.state, rec.client, rec.lastError
	rec.mu.Unlock()

	if state != StateReady {
		m.recordMessage(monitoring.SendRejected)
		if state == StateFailed {
			return nil, fmt.Errorf("%w: %w: %s", ErrServiceUnavailable, ErrHandshakeFailed, lastErr)
		}
		return nil, fmt.Errorf("%w: session %s is %s", ErrServiceUnavailable, sessionID, state)
	}

	to := automation.ChatAddress(mobile)
	result, err := client.SendMessage(ctx, to, text)
	if err != nil {
		m.recordMessage(monitoring.SendFailed)
		m.logger.Error("Failed to send message",
			zap.String("session", sessionID),
			zap.String("to", to),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	m.recordMessage(monitoring.SendSent)
	m.logger.Debug("message sent", zap.String("session", sessionID), zap.String("to", to))
	return result, nil
}

// ConnectionState queries a paired session's transport state. A failing
// query is reported in the status, not as an error.
func (m *Manager) ConnectionState(ctx context.Context, sessionID string) (ConnectionStatus, error) {
	rec, ok := m.registry.Get(sessionID)
	if !ok {
		return ConnectionStatus{}, fmt.Errorf("%w: session %s does not exist", ErrNotInitialized, sessionID)
	}

	rec.mu.Lock()
	state, client, lastErr := rec.state, rec.client, rec.lastError
	rec.mu.Unlock()

	if state != StateReady {
		if state == StateFailed {
			return ConnectionStatus{}, fmt.Errorf("%w: %w: %s", ErrNotInitialized, ErrHandshakeFailed, lastErr)
		}
		return ConnectionStatus{}, fmt.Errorf("%w: session %s is %s", ErrNotInitialized, sessionID, state)
	}

	st, err := client.ConnectionState(ctx)
	if err != nil {
		m.logger.Error("Error getting connection state",
			zap.String("session", sessionID),
			zap.Error(err))
		return ConnectionStatus{State: ConnectionError, Error: err.Error()}, nil
	}
	return ConnectionStatus{State: st}, nil
}

// Delete removes a session in any state. A pending handshake is cancelled
// without waiting for it: the driver discards its browser, and whatever it
// resolves with is dropped by the ownership check. A paired client is
// closed. Cleanup failures are logged, never returned.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	rec, ok := m.registry.Remove(sessionID)
	if !ok {
		return fmt.Errorf("%w: session %s does not exist", ErrNotFound, sessionID)
	}

	client := rec.close(m.now())
	m.reportStates()
	if m.metrics != nil {
		m.metrics.IncSessionsDeleted()
	}

	if client != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.CloseTimeout)
		m.closeClientCtx(closeCtx, sessionID, client)
		cancel()
	}

	if m.storage != nil {
		if err := m.storage.Delete(sessionID); err != nil {
			m.logger.Error("Failed to delete session folder",
				zap.String("session", sessionID),
				zap.Error(err))
		}
	}

	m.hub.Publish(Event{Type: EventClosed, Session: sessionID, State: StateClosed, Timestamp: m.now()})
	m.logger.Info("session deleted",
		zap.String("session", sessionID),
		zap.Duration("age", m.now().Sub(rec.Generation.Time())))
	return nil
}

// Subscribe streams lifecycle events of a session. The first event is the
// session's current state; the channel closes when the session is deleted
// or the manager shuts down.
func (m *Manager) Subscribe(sessionID string, buffer int) (<-chan Event, func(), error) {
	rec, ok := m.registry.Get(sessionID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: session %s does not exist", ErrNotFound, sessionID)
	}

	ch, cancel, ok := m.hub.Subscribe(sessionID, buffer, func() (Event, bool) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		if rec.state == StateClosed {
			return Event{}, false
		}
		return Event{
			Type:      EventState,
			Session:   rec.ID,
			State:     rec.state,
			QR:        rec.artifact,
			Error:     rec.lastError,
			Timestamp: m.now(),
		}, true
	})
	if !ok {
		return nil, nil, fmt.Errorf("%w: session %s does not exist", ErrNotFound, sessionID)
	}
	return ch, cancel, nil
}

// Shutdown stops accepting sessions, aborts pending handshakes and closes
// every paired client. Profiles are kept so sessions can resume pairing
// after a restart.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.lifecycle.Lock()
	if m.stopped {
		m.lifecycle.Unlock()
		return nil
	}
	m.stopped = true
	m.lifecycle.Unlock()
	m.cancel()

	var clients []struct {
		id     string
		client automation.Client
	}
	for _, rec := range m.registry.Snapshot() {
		if !m.registry.RemoveIf(rec.ID, rec) {
			continue
		}
		if c := rec.close(m.now()); c != nil {
			clients = append(clients, struct {
				id     string
				client automation.Client
			}{rec.ID, c})
		}
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closeCtx, cancel := context.WithTimeout(ctx, m.cfg.CloseTimeout)
			defer cancel()
			if err := c.client.Close(closeCtx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("close session %s: %w", c.id, err))
				mu.Unlock()
				if m.metrics != nil {
					m.metrics.IncClientCloseErrors()
				}
			}
		}()
	}
	wg.Wait()

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for handshakes: %w", ctx.Err()))
	}

	m.pool.Release()
	m.hub.Close()
	m.reportStates()

	m.logger.Info("session manager stopped", zap.Int("closed_clients", len(clients)))
	return errors.Join(errs...)
}

func (m *Manager) isShutdown() bool {
	m.lifecycle.RLock()
	defer m.lifecycle.RUnlock()
	return m.stopped
}

func (m *Manager) closeClient(sessionID string, client automation.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CloseTimeout)
	defer cancel()
	m.closeClientCtx(ctx, sessionID, client)
}

func (m *Manager) closeClientCtx(ctx context.Context, sessionID string, client automation.Client) {
	if err := client.Close(ctx); err != nil {
		if m.metrics != nil {
			m.metrics.IncClientCloseErrors()
		}
		m.logger.Warn("Failed to close client",
			zap.String("session", sessionID),
			zap.Error(err))
		return
	}
	m.logger.Info("client closed for session", zap.String("session", sessionID))
}

func (m *Manager) recordHandshake(outcome string, started time.Time) {
	if m.metrics != nil {
		m.metrics.RecordHandshake(outcome, m.now().Sub(started))
	}
}

func (m *Manager) recordMessage(status string) {
	if m.metrics != nil {
		m.metrics.RecordMessage(status)
	}
}

// reportStates refreshes the per-state session gauge
func (m *Manager) reportStates() {
	if m.metrics == nil {
		return
	}
	m.metrics.SetSessions(m.Stats().ByState)
}
