package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/navikt/roomswitch/internal/bridge"
	"github.com/navikt/roomswitch/internal/config"
	"github.com/navikt/roomswitch/internal/logging"
	"github.com/navikt/roomswitch/internal/models"
	"github.com/navikt/roomswitch/internal/provisioning"
	"github.com/navikt/roomswitch/internal/relay"
	"github.com/navikt/roomswitch/internal/repository/memory"
	"github.com/navikt/roomswitch/internal/service"
	"github.com/navikt/roomswitch/internal/session"
	"github.com/navikt/roomswitch/internal/transport"
	"github.com/navikt/roomswitch/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCreator hands out room ids in order and fails once they run out
type stubCreator struct {
	mu  sync.Mutex
	ids []models.RoomID
}

func (c *stubCreator) CreateMeeting(ctx context.Context) (models.RoomID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ids) == 0 {
		return "", &provisioning.ProvisioningError{StatusCode: 401, Message: "Unauthorized"}
	}
	id := c.ids[0]
	c.ids = c.ids[1:]
	return id, nil
}

type harness struct {
	fake    *transporttest.Fake
	repo    *memory.Repository
	relay   *relay.Coordinator
	session *session.Controller
	svc     *service.RoomService

	mu      sync.Mutex
	notices []string
}

func (h *harness) noticeMessages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.notices...)
}

// newHarness wires the service to a fake transport whose join, leave and
// relay request commands are answered through the event bridge
func newHarness(t *testing.T, ids ...models.RoomID) *harness {
	t.Helper()
	logger := logging.Discard()
	fake := transporttest.NewFake()
	repo := memory.NewRepository()

	rc := relay.NewCoordinator(fake, nil, nil, logger)
	sc := session.NewController(fake, rc, session.Options{GracePeriod: 10 * time.Millisecond}, nil, logger)
	allocator := provisioning.NewAllocator(&stubCreator{ids: ids}, nil, logger)

	svc := service.NewRoomService(allocator, repo, sc, rc, config.SessionConfig{
		RelayKinds:    []models.MediaKind{models.MediaVideo},
		SwitchTimeout: 2 * time.Second,
	}, "tok", logger)

	h := &harness{fake: fake, repo: repo, relay: rc, session: sc, svc: svc}
	svc.RegisterNoticeCallback(func(n models.Notice) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.notices = append(h.notices, n.Message)
	})

	fake.OnCall(transport.TypeJoin, func(args any) {
		fake.Emit("onMeetingJoined", models.MeetingJoinedEvent{MeetingID: args.(transport.JoinConfig).MeetingID})
	})
	fake.OnCall(transport.TypeLeave, func(any) {
		fake.Emit("onMeetingLeft", models.MeetingLeftEvent{})
	})
	fake.OnCall(transport.TypeRequestMediaRelay, func(any) {
		fake.Emit("onMediaRelayRequestResponse", models.RelayRequestResponseEvent{ParticipantID: "P", Decision: models.DecisionAccepted})
	})
	fake.OnCall(transport.TypeStopMediaRelay, func(args any) {
		fake.Emit("onMediaRelayStopped", models.RelayStoppedEvent{MeetingID: args.(models.RoomID), Reason: "stopped"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bridge.New(sc, rc, nil, logger).Run(ctx, fake.Events())

	return h
}

func (h *harness) waitJoined(t *testing.T, room models.RoomID) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, ok := h.session.Current()
		return ok && s.State == models.SessionJoined && s.MeetingID == room
	}, 2*time.Second, 5*time.Millisecond)
}

func (h *harness) waitRelay(t *testing.T, state models.RelayState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.relay.State() == state
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPrepareAndJoin(t *testing.T) {
	h := newHarness(t, "A1", "B1")
	ctx := context.Background()

	pair, err := h.svc.PrepareAndJoin(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoomPair{RoomA: "A1", RoomB: "B1"}, pair)

	stored, err := h.repo.GetPair(ctx)
	require.NoError(t, err)
	assert.Equal(t, pair, stored)

	h.waitJoined(t, "A1")
	s, _ := h.session.Current()
	assert.Equal(t, "Participant (A1...)", s.DisplayName)
	assert.Equal(t, "tok", s.AuthToken)

	status := h.svc.Status(ctx)
	assert.Equal(t, models.SessionJoined, status.SessionState)
	assert.Equal(t, models.RoomID("A1"), status.CurrentRoom)
	assert.True(t, status.RelayAvailable)
}

func TestPrepareAndJoin_ProvisioningFailure(t *testing.T) {
	h := newHarness(t, "A1")
	ctx := context.Background()

	_, err := h.svc.PrepareAndJoin(ctx)

	var provErr *provisioning.ProvisioningError
	require.ErrorAs(t, err, &provErr)
	_, err = h.repo.GetPair(ctx)
	assert.ErrorIs(t, err, models.ErrPairNotFound)
	assert.Empty(t, h.fake.Calls())
	assert.Equal(t, []string{"Failed to create rooms. Check token and API endpoint."}, h.noticeMessages())
}

func TestFullFlow_RelayThenSwitch(t *testing.T) {
	h := newHarness(t, "A1", "B1")
	ctx := context.Background()

	_, err := h.svc.PrepareAndJoin(ctx)
	require.NoError(t, err)
	h.waitJoined(t, "A1")

	require.NoError(t, h.svc.StartRelay(ctx))
	h.waitRelay(t, models.RelayActive)

	req := h.fake.Calls()[1].Args.(transport.RelayRequest)
	assert.Equal(t, models.RoomID("B1"), req.DestinationMeetingID)
	assert.Equal(t, []models.MediaKind{models.MediaVideo}, req.Kinds)
	assert.Equal(t, models.RoomID("B1"), h.svc.Status(ctx).RelayTarget)

	target, err := h.svc.SwitchRoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoomID("B1"), target)
	h.waitJoined(t, "B1")
	assert.Equal(t, models.RelayIdle, h.relay.State())

	assert.Equal(t, []string{
		transport.TypeJoin,
		transport.TypeRequestMediaRelay,
		transport.TypeStopMediaRelay,
		transport.TypeLeave,
		transport.TypeJoin,
	}, h.fake.Ops())
	assert.Contains(t, h.noticeMessages(), "Media relay started")

	// And back again
	target, err = h.svc.SwitchRoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoomID("A1"), target)
	h.waitJoined(t, "A1")
}

func TestRelayError_SurfacesNotice(t *testing.T) {
	h := newHarness(t, "A1", "B1")
	ctx := context.Background()
	h.fake.OnCall(transport.TypeRequestMediaRelay, func(any) {
		h.fake.Emit("onMediaRelayError", models.RelayErrorEvent{MeetingID: "B1", Error: "token scope invalid"})
	})

	_, err := h.svc.PrepareAndJoin(ctx)
	require.NoError(t, err)
	h.waitJoined(t, "A1")

	require.NoError(t, h.svc.StartRelay(ctx))

	require.Eventually(t, func() bool {
		for _, msg := range h.noticeMessages() {
			if msg == "Media relay error: token scope invalid" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	h.waitRelay(t, models.RelayIdle)
}

func TestJoinByID_PartialPair(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pair, err := h.svc.JoinByID(ctx, "X9")
	require.NoError(t, err)
	assert.Equal(t, models.RoomPair{RoomA: "X9"}, pair)
	h.waitJoined(t, "X9")

	assert.ErrorIs(t, h.svc.StartRelay(ctx), models.ErrPairIncomplete)
	_, err = h.svc.SwitchRoom(ctx)
	assert.ErrorIs(t, err, models.ErrPairIncomplete)
	assert.False(t, h.svc.Status(ctx).RelayAvailable)
	assert.Equal(t, []string{transport.TypeJoin}, h.fake.Ops())
}

func TestJoinByID_KeepsKnownPair(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pair := models.RoomPair{RoomA: "A1", RoomB: "B1"}
	require.NoError(t, h.repo.SavePair(ctx, pair))

	got, err := h.svc.JoinByID(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, pair, got)
	h.waitJoined(t, "B1")

	target, err := h.svc.SwitchRoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoomID("A1"), target)
}

func TestJoinByID_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.JoinByID(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrMissingRoom)
}

func TestLeave_StopsRelayFirst(t *testing.T) {
	h := newHarness(t, "A1", "B1")
	ctx := context.Background()
	_, err := h.svc.PrepareAndJoin(ctx)
	require.NoError(t, err)
	h.waitJoined(t, "A1")
	require.NoError(t, h.svc.StartRelay(ctx))
	h.waitRelay(t, models.RelayActive)
	h.fake.Fail(transport.TypeStopMediaRelay, errors.New("already gone"))

	require.NoError(t, h.svc.Leave(ctx))

	assert.Equal(t, []string{transport.TypeStopMediaRelay, transport.TypeLeave}, h.fake.Ops()[2:])
	assert.Equal(t, models.RelayIdle, h.relay.State())
	require.Eventually(t, func() bool {
		return h.session.State() == models.SessionDisconnected
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStopRelayFailure_ThenSwitch(t *testing.T) {
	h := newHarness(t, "A1", "B1")
	ctx := context.Background()
	_, err := h.svc.PrepareAndJoin(ctx)
	require.NoError(t, err)
	h.waitJoined(t, "A1")
	require.NoError(t, h.svc.StartRelay(ctx))
	h.waitRelay(t, models.RelayActive)
	h.fake.Fail(transport.TypeStopMediaRelay, errors.New("boom"))

	assert.Error(t, h.svc.StopRelay(ctx))
	assert.Equal(t, models.RelayActive, h.relay.State())

	// The stop is sent again rather than swallowed
	assert.Error(t, h.svc.StopRelay(ctx))
	assert.Equal(t, 2, h.fake.Count(transport.TypeStopMediaRelay))

	target, err := h.svc.SwitchRoom(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoomID("B1"), target)
	h.waitJoined(t, "B1")

	assert.Equal(t, models.RelayIdle, h.relay.State())
	_, ok := h.relay.Link()
	assert.False(t, ok)

	// A relay can be started again from the new room
	h.fake.Fail(transport.TypeStopMediaRelay, nil)
	require.NoError(t, h.svc.StartRelay(ctx))
	h.waitRelay(t, models.RelayActive)
	link, _ := h.relay.Link()
	assert.Equal(t, models.RoomID("B1"), link.SourceMeetingID)
	assert.Equal(t, models.RoomID("A1"), link.DestinationMeetingID)
}

func TestStartRelay_RejectedDuringSwitch(t *testing.T) {
	h := newHarness(t, "A1", "B1")
	ctx := context.Background()
	_, err := h.svc.PrepareAndJoin(ctx)
	require.NoError(t, err)
	h.waitJoined(t, "A1")

	var errDuringSwitch error
	h.fake.OnCall(transport.TypeLeave, func(any) {
		errDuringSwitch = h.svc.StartRelay(ctx)
		h.fake.Emit("onMeetingLeft", models.MeetingLeftEvent{})
	})

	_, err = h.svc.SwitchRoom(ctx)
	require.NoError(t, err)
	h.waitJoined(t, "B1")

	assert.ErrorIs(t, errDuringSwitch, models.ErrSwitchInProgress)
	assert.Equal(t, 0, h.fake.Count(transport.TypeRequestMediaRelay))
	assert.Equal(t, models.RelayIdle, h.relay.State())
}

func TestStopRelay_IdleIsNoop(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.svc.StopRelay(context.Background()))
	assert.Empty(t, h.fake.Calls())
}

func TestClearRooms(t *testing.T) {
	h := newHarness(t, "A1", "B1")
	ctx := context.Background()
	_, err := h.svc.PrepareAndJoin(ctx)
	require.NoError(t, err)
	h.waitJoined(t, "A1")

	assert.ErrorIs(t, h.svc.ClearRooms(ctx), models.ErrInvalidState)

	require.NoError(t, h.svc.Leave(ctx))
	require.Eventually(t, func() bool {
		return h.session.State() == models.SessionDisconnected
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.svc.ClearRooms(ctx))
	assert.True(t, h.svc.Status(ctx).Pair.IsZero())
}

func TestUpdateCallback_ReceivesSnapshots(t *testing.T) {
	h := newHarness(t, "A1", "B1")
	var mu sync.Mutex
	var states []models.SessionState
	h.svc.RegisterUpdateCallback(func(status models.Status) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, status.SessionState)
	})

	_, err := h.svc.PrepareAndJoin(context.Background())
	require.NoError(t, err)
	h.waitJoined(t, "A1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) > 0 && states[len(states)-1] == models.SessionJoined
	}, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Contains(t, states, models.SessionJoining)
	mu.Unlock()
}
