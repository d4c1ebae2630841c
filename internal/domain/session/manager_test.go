package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/sessiongate/internal/automation"
	"github.com/GriffinCanCode/sessiongate/internal/automation/automationtest"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/monitoring"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 2 * time.Second

type mockStorage struct {
	mock.Mock
}

func (s *mockStorage) Path(sessionID string) (string, error) {
	args := s.Called(sessionID)
	return args.String(0), args.Error(1)
}

func (s *mockStorage) Delete(sessionID string) error {
	return s.Called(sessionID).Error(0)
}

func setupManager(t *testing.T, cfg Config) (*Manager, *automationtest.Driver, *mockStorage) {
	t.Helper()

	driver := automationtest.NewDriver()
	storage := &mockStorage{}
	storage.On("Path", mock.Anything).Return("/profiles/session", nil).Maybe()

	m, err := NewManager(driver, storage, zap.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
	})
	return m, driver, storage
}

func handshake(t *testing.T, driver *automationtest.Driver, sessionID string, n int) *automationtest.Handshake {
	t.Helper()
	h, err := driver.Handshake(sessionID, n, waitFor)
	require.NoError(t, err)
	return h
}

func waitState(t *testing.T, m *Manager, sessionID string, want State) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		s, err := m.Status(sessionID)
		snap = s
		return err == nil && s.State == want
	}, waitFor, 5*time.Millisecond, "session %s never reached %s", sessionID, want)
	return snap
}

func TestNewManagerRequiresDriver(t *testing.T) {
	_, err := NewManager(nil, nil, zap.NewNop(), DefaultConfig())
	assert.Error(t, err)
}

func TestCreateValidatesSessionID(t *testing.T) {
	m, _, _ := setupManager(t, DefaultConfig())

	for _, id := range []string{"", "../tokens", "alice bob", "a/b"} {
		_, _, err := m.Create(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidArgument, id)
	}
	assert.Empty(t, m.List())
}

func TestCreateReturnsWithoutWaiting(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())

	snap, created, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StateAwaitingPairing, snap.State)
	assert.NotEmpty(t, snap.Generation)

	h := handshake(t, driver, "alice", 0)
	assert.True(t, h.Options.Headless)
	assert.Equal(t, "/profiles/session", h.Options.ProfileDir)
	assert.Contains(t, h.Options.BrowserArgs, "--no-sandbox")
}

func TestCreateTwiceLaunchesOneHandshake(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())

	first, created, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Generation, second.Generation)

	handshake(t, driver, "alice", 0)
	_, err = driver.Handshake("alice", 1, 50*time.Millisecond)
	assert.Error(t, err, "a second handshake must not be launched")
	assert.Equal(t, 1, driver.Calls("alice"))
}

func TestConcurrentCreateLaunchesOneHandshake(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	generations := make(map[string]struct{})

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, ok, err := m.Create(context.Background(), "carol")
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			generations[snap.Generation] = struct{}{}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, generations, 1)
	handshake(t, driver, "carol", 0)
	_, err := driver.Handshake("carol", 1, 50*time.Millisecond)
	assert.Error(t, err)
}

func TestCreateWhileReadyIsNoop(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())

	_, _, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	handshake(t, driver, "alice", 0).Ready(automationtest.NewClient())
	ready := waitState(t, m, "alice", StateReady)

	snap, created, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, ready.Generation, snap.Generation)
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, 1, driver.Calls("alice"))
}

func TestAliceScenario(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	storage.On("Delete", "alice").Return(nil).Once()
	ctx := context.Background()

	_, _, err := m.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = m.PairingArtifact("alice")
	assert.ErrorIs(t, err, ErrNotReady, "no artifact before the first callback")

	h := handshake(t, driver, "alice", 0)
	require.True(t, h.Artifact("A1"))
	require.True(t, h.Artifact("A2"))

	qr, err := m.PairingArtifact("alice")
	require.NoError(t, err)
	assert.Equal(t, "A2", qr)

	_, err = m.SendMessage(ctx, "alice", "5511999999999", "hello")
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	client := automationtest.NewClient()
	require.True(t, h.Ready(client))
	snap := waitState(t, m, "alice", StateReady)
	assert.Equal(t, 2, snap.ArtifactUpdates)

	result, err := m.SendMessage(ctx, "alice", "5511999999999", "hello")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Equal(t, "5511999999999@c.us", decoded["to"])
	assert.Equal(t, []automationtest.Message{{To: "5511999999999@c.us", Text: "hello"}}, client.Sent())

	status, err := m.ConnectionState(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, automation.StateConnected, status.State)

	require.NoError(t, m.Delete(ctx, "alice"))
	assert.Equal(t, 1, client.Closes())

	_, err = m.PairingArtifact("alice")
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = m.ConnectionState(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotInitialized)
	storage.AssertExpectations(t)
}

func TestBobScenario(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())
	ctx := context.Background()

	_, _, err := m.Create(ctx, "bob")
	require.NoError(t, err)
	require.True(t, handshake(t, driver, "bob", 0).Fail(errors.New("timeout")))

	snap := waitState(t, m, "bob", StateFailed)
	assert.Equal(t, "timeout", snap.LastError)

	_, err = m.ConnectionState(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, err, ErrHandshakeFailed)

	_, err = m.SendMessage(ctx, "bob", "5511999999999", "hello")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, ErrHandshakeFailed)
	assert.Contains(t, err.Error(), "timeout")
}

func TestCreateAfterFailureStartsFresh(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())
	ctx := context.Background()

	_, _, err := m.Create(ctx, "bob")
	require.NoError(t, err)
	h := handshake(t, driver, "bob", 0)
	require.True(t, h.Artifact("B1"))
	require.True(t, h.Fail(errors.New("timeout")))
	failed := waitState(t, m, "bob", StateFailed)

	snap, created, err := m.Create(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, failed.Generation, snap.Generation)
	assert.Equal(t, StateAwaitingPairing, snap.State)
	assert.Empty(t, snap.LastError)
	assert.False(t, snap.HasArtifact)
	handshake(t, driver, "bob", 1)
}

func TestDeleteUnknownSession(t *testing.T) {
	m, _, _ := setupManager(t, DefaultConfig())

	err := m.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteInEveryState(t *testing.T) {
	tests := []struct {
		name       string
		drive      func(h *automationtest.Handshake, client *automationtest.Client)
		state      State
		wantCloses int
		cancelled  bool
	}{
		{
			name:      "awaiting pairing",
			drive:     func(h *automationtest.Handshake, _ *automationtest.Client) { h.Artifact("A1") },
			state:     StateAwaitingPairing,
			cancelled: true,
		},
		{
			name:       "ready",
			drive:      func(h *automationtest.Handshake, c *automationtest.Client) { h.Ready(c) },
			state:      StateReady,
			wantCloses: 1,
		},
		{
			name:  "failed",
			drive: func(h *automationtest.Handshake, _ *automationtest.Client) { h.Fail(errors.New("auth failure")) },
			state: StateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, driver, storage := setupManager(t, DefaultConfig())
			storage.On("Delete", "dave").Return(nil).Once()

			_, _, err := m.Create(context.Background(), "dave")
			require.NoError(t, err)
			client := automationtest.NewClient()
			h := handshake(t, driver, "dave", 0)
			tt.drive(h, client)
			waitState(t, m, "dave", tt.state)

			require.NoError(t, m.Delete(context.Background(), "dave"))

			_, err = m.Status("dave")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Equal(t, tt.wantCloses, client.Closes())
			<-h.Done()
			assert.Equal(t, tt.cancelled, h.Cancelled())
			storage.AssertExpectations(t)
		})
	}
}

func TestDeleteSuppressesCleanupFailures(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	storage.On("Delete", "alice").Return(errors.New("permission denied")).Once()

	_, _, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	client := automationtest.NewClient()
	client.SetCloseError(errors.New("browser already gone"))
	handshake(t, driver, "alice", 0).Ready(client)
	waitState(t, m, "alice", StateReady)

	assert.NoError(t, m.Delete(context.Background(), "alice"))
	assert.Equal(t, 1, client.Closes())
	assert.Empty(t, m.List())
	storage.AssertExpectations(t)
}

func TestDeleteThenCreateIsFresh(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	storage.On("Delete", "alice").Return(nil)

	first, _, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, handshake(t, driver, "alice", 0).Artifact("A1"))

	require.NoError(t, m.Delete(context.Background(), "alice"))

	snap, created, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.Generation, snap.Generation)
	assert.Equal(t, 0, snap.ArtifactUpdates)

	_, err = m.PairingArtifact("alice")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestDeleteCancelsPendingHandshake(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	metrics := monitoring.NewMetrics()
	m.WithMetrics(metrics)

	_, _, err := m.Create(context.Background(), "erin")
	require.NoError(t, err)
	h := handshake(t, driver, "erin", 0)
	require.True(t, h.Artifact("A1"))

	storage.On("Delete", "erin").Return(nil).Once()

	require.NoError(t, m.Delete(context.Background(), "erin"))

	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatal("handshake still running after delete")
	}
	assert.True(t, h.Cancelled())
	assert.False(t, h.Ready(automationtest.NewClient()))
	storage.AssertExpectations(t)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.Handshakes.WithLabelValues(monitoring.OutcomeDiscarded)) == 1
	}, waitFor, 5*time.Millisecond)
}

func TestHandshakeCarriesGeneration(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	storage.On("Delete", "alice").Return(nil)
	ctx := context.Background()

	first, _, err := m.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.Generation, handshake(t, driver, "alice", 0).Options.Generation)

	require.NoError(t, m.Delete(ctx, "alice"))
	second, _, err := m.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, second.Generation, handshake(t, driver, "alice", 1).Options.Generation)
	assert.NotEqual(t, first.Generation, second.Generation)
}

func TestHandshakeResolvingAfterDeleteIsDiscarded(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	driver.IgnoreCancel = true
	storage.On("Delete", "erin").Return(nil)

	_, _, err := m.Create(context.Background(), "erin")
	require.NoError(t, err)
	h := handshake(t, driver, "erin", 0)

	require.NoError(t, m.Delete(context.Background(), "erin"))

	require.True(t, h.Artifact("late"))
	orphan := automationtest.NewClient()
	require.True(t, h.Ready(orphan))

	require.Eventually(t, func() bool { return orphan.Closes() == 1 }, waitFor, 5*time.Millisecond,
		"orphaned client must be closed")
	_, err = m.Status("erin")
	assert.ErrorIs(t, err, ErrNotFound, "session must not be resurrected")
	_, err = m.PairingArtifact("erin")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestStaleHandshakeDoesNotTouchRecreatedSession(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	driver.IgnoreCancel = true
	storage.On("Delete", "erin").Return(nil)
	ctx := context.Background()

	_, _, err := m.Create(ctx, "erin")
	require.NoError(t, err)
	stale := handshake(t, driver, "erin", 0)
	require.NoError(t, m.Delete(ctx, "erin"))

	_, created, err := m.Create(ctx, "erin")
	require.NoError(t, err)
	require.True(t, created)
	current := handshake(t, driver, "erin", 1)
	t.Cleanup(func() { current.Fail(errors.New("test finished")) })

	require.True(t, stale.Artifact("stale-qr"))
	orphan := automationtest.NewClient()
	require.True(t, stale.Ready(orphan))
	require.Eventually(t, func() bool { return orphan.Closes() == 1 }, waitFor, 5*time.Millisecond)

	snap, err := m.Status("erin")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPairing, snap.State)
	assert.False(t, snap.HasArtifact)

	require.True(t, current.Artifact("fresh-qr"))
	qr, err := m.PairingArtifact("erin")
	require.NoError(t, err)
	assert.Equal(t, "fresh-qr", qr)
}

func TestStaleFailureDoesNotTouchRecreatedSession(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	driver.IgnoreCancel = true
	storage.On("Delete", "erin").Return(nil)
	ctx := context.Background()

	_, _, err := m.Create(ctx, "erin")
	require.NoError(t, err)
	stale := handshake(t, driver, "erin", 0)
	require.NoError(t, m.Delete(ctx, "erin"))
	_, _, err = m.Create(ctx, "erin")
	require.NoError(t, err)
	current := handshake(t, driver, "erin", 1)
	t.Cleanup(func() { current.Fail(errors.New("test finished")) })

	require.True(t, stale.Fail(errors.New("timeout")))

	assert.Never(t, func() bool {
		s, err := m.Status("erin")
		return err != nil || s.State != StateAwaitingPairing
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestArtifactAfterReadyIsDiscarded(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())

	_, _, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	h := handshake(t, driver, "alice", 0)
	require.True(t, h.Artifact("A1"))
	require.True(t, h.Ready(automationtest.NewClient()))
	waitState(t, m, "alice", StateReady)

	rec, ok := m.registry.Get("alice")
	require.True(t, ok)
	m.applyArtifact(rec, "A2")

	qr, err := m.PairingArtifact("alice")
	require.NoError(t, err)
	assert.Equal(t, "A1", qr)
	assert.Equal(t, StateReady, rec.State())
}

func TestSendMessageRequiresReady(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())
	ctx := context.Background()

	_, err := m.SendMessage(ctx, "nobody", "5511999999999", "hi")
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	_, _, err = m.Create(ctx, "alice")
	require.NoError(t, err)
	handshake(t, driver, "alice", 0)

	_, err = m.SendMessage(ctx, "alice", "5511999999999", "hi")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Contains(t, err.Error(), StateAwaitingPairing.String())
}

func TestSendMessageValidatesInput(t *testing.T) {
	m, _, _ := setupManager(t, DefaultConfig())

	tests := []struct {
		mobile, text string
	}{
		{"", "hi"},
		{"5511999999999", ""},
		{"5511999999999", "   "},
		{"not-a-number", "hi"},
	}
	for _, tt := range tests {
		_, err := m.SendMessage(context.Background(), "alice", tt.mobile, tt.text)
		assert.ErrorIs(t, err, ErrInvalidArgument, fmt.Sprintf("%q/%q", tt.mobile, tt.text))
	}
}

func TestSendMessageUpstreamFailure(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())

	_, _, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	client := automationtest.NewClient()
	client.SetSendError(errors.New("chat not found"))
	handshake(t, driver, "alice", 0).Ready(client)
	waitState(t, m, "alice", StateReady)

	_, err = m.SendMessage(context.Background(), "alice", "5511999999999@c.us", "hi")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "chat not found")
	waitState(t, m, "alice", StateReady)
}

func TestConnectionStateQueryFailure(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())

	_, _, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	client := automationtest.NewClient()
	client.SetState("", errors.New("page crashed"))
	handshake(t, driver, "alice", 0).Ready(client)
	waitState(t, m, "alice", StateReady)

	status, err := m.ConnectionState(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, ConnectionStatus{State: ConnectionError, Error: "page crashed"}, status)
}

func TestConnectionStateBeforeReady(t *testing.T) {
	m, _, _ := setupManager(t, DefaultConfig())

	_, err := m.ConnectionState(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, _, err = m.Create(context.Background(), "alice")
	require.NoError(t, err)
	_, err = m.ConnectionState(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestFullPoolFailsHandshake(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1
	m, driver, _ := setupManager(t, cfg)

	_, _, err := m.Create(context.Background(), "alice")
	require.NoError(t, err)
	handshake(t, driver, "alice", 0)

	_, created, err := m.Create(context.Background(), "bob")
	require.NoError(t, err, "capacity problems are recorded, not returned")
	assert.True(t, created)

	snap := waitState(t, m, "bob", StateFailed)
	assert.Contains(t, snap.LastError, "handshake capacity exhausted")
	assert.Equal(t, 0, driver.Calls("bob"))
}

func TestSubscribeStreamsLifecycle(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	storage.On("Delete", "alice").Return(nil)

	_, _, err := m.Subscribe("alice", 8)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = m.Create(context.Background(), "alice")
	require.NoError(t, err)
	events, cancel, err := m.Subscribe("alice", 8)
	require.NoError(t, err)
	defer cancel()

	h := handshake(t, driver, "alice", 0)
	require.True(t, h.Artifact("A1"))
	require.True(t, h.Ready(automationtest.NewClient()))
	waitState(t, m, "alice", StateReady)
	require.NoError(t, m.Delete(context.Background(), "alice"))

	var got []EventType
	for ev := range events {
		got = append(got, ev.Type)
		if ev.Type == EventArtifact {
			assert.Equal(t, "A1", ev.QR)
		}
	}
	assert.Equal(t, []EventType{EventState, EventArtifact, EventReady, EventClosed}, got)
}

func TestShutdownClosesClientsAndKeepsProfiles(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	ctx := context.Background()

	_, _, err := m.Create(ctx, "alice")
	require.NoError(t, err)
	client := automationtest.NewClient()
	handshake(t, driver, "alice", 0).Ready(client)
	waitState(t, m, "alice", StateReady)

	_, _, err = m.Create(ctx, "bob")
	require.NoError(t, err)
	pending := handshake(t, driver, "bob", 0)

	require.NoError(t, m.Shutdown(ctx))

	assert.Equal(t, 1, client.Closes())
	<-pending.Done()
	assert.Empty(t, m.List())
	storage.AssertNotCalled(t, "Delete", mock.Anything)

	_, _, err = m.Create(ctx, "carol")
	assert.ErrorIs(t, err, ErrShutdown)
	assert.NoError(t, m.Shutdown(ctx), "second shutdown is a no-op")
}

func TestListAndStats(t *testing.T) {
	m, driver, _ := setupManager(t, DefaultConfig())
	ctx := context.Background()

	for _, id := range []string{"carol", "alice", "bob"} {
		_, _, err := m.Create(ctx, id)
		require.NoError(t, err)
	}
	handshake(t, driver, "alice", 0).Ready(automationtest.NewClient())
	handshake(t, driver, "bob", 0).Fail(errors.New("timeout"))
	waitState(t, m, "alice", StateReady)
	waitState(t, m, "bob", StateFailed)

	list := m.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alice", list[0].ID)
	assert.Equal(t, "bob", list[1].ID)
	assert.Equal(t, "carol", list[2].ID)

	stats := m.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, map[string]int{"READY": 1, "FAILED": 1, "AWAITING_PAIRING": 1}, stats.ByState)
}

func TestManagerMetrics(t *testing.T) {
	m, driver, storage := setupManager(t, DefaultConfig())
	metrics := monitoring.NewMetrics()
	m.WithMetrics(metrics)
	storage.On("Delete", "alice").Return(nil)
	ctx := context.Background()

	_, _, err := m.Create(ctx, "alice")
	require.NoError(t, err)
	h := handshake(t, driver, "alice", 0)
	require.True(t, h.Artifact("A1"))
	require.True(t, h.Ready(automationtest.NewClient()))
	waitState(t, m, "alice", StateReady)

	_, err = m.SendMessage(ctx, "alice", "5511999999999", "hi")
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PairingArtifacts))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Handshakes.WithLabelValues(monitoring.OutcomeReady)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Messages.WithLabelValues(monitoring.SendSent)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsActive.WithLabelValues("READY")))

	require.NoError(t, m.Delete(ctx, "alice"))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsDeleted))
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.SessionsActive))
}
