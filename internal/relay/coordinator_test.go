package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/navikt/roomswitch/internal/logging"
	"github.com/navikt/roomswitch/internal/models"
	"github.com/navikt/roomswitch/internal/transport"
	"github.com/navikt/roomswitch/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noticeLog struct {
	mu      sync.Mutex
	notices []models.Notice
}

func (l *noticeLog) add(n models.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
}

func (l *noticeLog) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, n := range l.notices {
		out = append(out, n.Message)
	}
	return out
}

type transitionLog struct {
	transitions [][2]models.RelayState
}

func (r *transitionLog) RelayTransition(from, to models.RelayState) {
	r.transitions = append(r.transitions, [2]models.RelayState{from, to})
}

func setup(t *testing.T) (*Coordinator, *transporttest.Fake, *noticeLog) {
	t.Helper()
	fake := transporttest.NewFake()
	c := NewCoordinator(fake, nil, nil, logging.Discard())
	notices := &noticeLog{}
	c.RegisterNoticeCallback(notices.add)
	return c, fake, notices
}

func startToB1(t *testing.T, c *Coordinator) {
	t.Helper()
	require.NoError(t, c.Start(context.Background(), StartRequest{
		SourceMeetingID:      "A1",
		DestinationMeetingID: "B1",
		Token:                "tok",
	}))
}

func TestStart_AcceptedBecomesActive(t *testing.T) {
	c, fake, notices := setup(t)

	startToB1(t, c)
	assert.Equal(t, models.RelayRequesting, c.State())

	calls := fake.Calls()
	require.Len(t, calls, 1)
	req := calls[0].Args.(transport.RelayRequest)
	assert.Equal(t, models.RoomID("B1"), req.DestinationMeetingID)
	assert.Equal(t, "tok", req.Token)
	assert.Equal(t, models.DefaultRelayKinds, req.Kinds)

	c.HandleRequestResponse(models.RelayRequestResponseEvent{ParticipantID: "P", Decision: models.DecisionAccepted})

	assert.Equal(t, models.RelayActive, c.State())
	link, ok := c.Link()
	require.True(t, ok)
	assert.Equal(t, models.RoomID("A1"), link.SourceMeetingID)
	assert.Equal(t, models.RoomID("B1"), link.DestinationMeetingID)
	assert.Equal(t, []string{"Media relay started"}, notices.messages())
}

func TestStart_OnlyFromIdle(t *testing.T) {
	c, fake, _ := setup(t)
	startToB1(t, c)

	err := c.Start(context.Background(), StartRequest{SourceMeetingID: "A1", DestinationMeetingID: "B1"})

	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, 1, fake.Count(transport.TypeRequestMediaRelay))
}

func TestStart_RequiresDestination(t *testing.T) {
	c, fake, _ := setup(t)

	err := c.Start(context.Background(), StartRequest{SourceMeetingID: "A1"})

	assert.ErrorIs(t, err, models.ErrPairIncomplete)
	assert.Empty(t, fake.Calls())
}

func TestStart_TransportFailureReverts(t *testing.T) {
	c, fake, notices := setup(t)
	fake.Fail(transport.TypeRequestMediaRelay, errors.New("not joined"))

	err := c.Start(context.Background(), StartRequest{SourceMeetingID: "A1", DestinationMeetingID: "B1"})

	var reqErr *RelayRequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, models.RoomID("B1"), reqErr.Destination)
	assert.Equal(t, models.RelayIdle, c.State())
	assert.Equal(t, []string{"Media relay failed: not joined"}, notices.messages())
}

func TestRequestResponse_Rejected(t *testing.T) {
	c, _, notices := setup(t)
	startToB1(t, c)

	c.HandleRequestResponse(models.RelayRequestResponseEvent{ParticipantID: "P", Decision: models.DecisionRejected})

	assert.Equal(t, models.RelayIdle, c.State())
	_, ok := c.Link()
	assert.False(t, ok)
	assert.Equal(t, []string{"Media relay was rejected by the other room"}, notices.messages())
}

func TestRequestResponse_StaleIsIgnored(t *testing.T) {
	c, _, notices := setup(t)

	// No request pending
	c.HandleRequestResponse(models.RelayRequestResponseEvent{Decision: models.DecisionAccepted})
	assert.Equal(t, models.RelayIdle, c.State())

	// Response for a request that was already stopped
	startToB1(t, c)
	require.NoError(t, c.Stop(context.Background(), "B1"))
	c.HandleRequestResponse(models.RelayRequestResponseEvent{Decision: models.DecisionAccepted})
	assert.Equal(t, models.RelayStopping, c.State())

	assert.Empty(t, notices.messages())
}

func TestStarted(t *testing.T) {
	t.Run("NeverCreatesLink", func(t *testing.T) {
		c, _, _ := setup(t)
		c.HandleStarted(models.RelayStartedEvent{MeetingID: "B1"})
		assert.Equal(t, models.RelayIdle, c.State())
	})

	t.Run("ConfirmsPendingRequest", func(t *testing.T) {
		c, _, _ := setup(t)
		startToB1(t, c)
		c.HandleStarted(models.RelayStartedEvent{MeetingID: "B1"})
		assert.Equal(t, models.RelayActive, c.State())
	})

	t.Run("EitherOrder", func(t *testing.T) {
		c, _, _ := setup(t)
		startToB1(t, c)
		c.HandleStarted(models.RelayStartedEvent{MeetingID: "B1"})
		c.HandleRequestResponse(models.RelayRequestResponseEvent{Decision: models.DecisionAccepted})
		c.HandleStarted(models.RelayStartedEvent{MeetingID: "B1"})
		assert.Equal(t, models.RelayActive, c.State())
	})
}

func TestStop(t *testing.T) {
	t.Run("IdleIsNoop", func(t *testing.T) {
		c, fake, _ := setup(t)
		updates := 0
		c.RegisterUpdateCallback(func() { updates++ })

		require.NoError(t, c.Stop(context.Background(), "B1"))
		require.NoError(t, c.Stop(context.Background(), ""))

		assert.Equal(t, models.RelayIdle, c.State())
		assert.Empty(t, fake.Calls())
		assert.Zero(t, updates)
	})

	t.Run("ActiveStopsThenIdleOnEvent", func(t *testing.T) {
		c, fake, _ := setup(t)
		startToB1(t, c)
		c.HandleRequestResponse(models.RelayRequestResponseEvent{Decision: models.DecisionAccepted})

		require.NoError(t, c.Stop(context.Background(), ""))
		assert.Equal(t, models.RelayStopping, c.State())
		assert.Equal(t, []string{transport.TypeRequestMediaRelay, transport.TypeStopMediaRelay}, fake.Ops())
		assert.Equal(t, models.RoomID("B1"), fake.Calls()[1].Args)

		// Second stop while stopping is a no-op
		require.NoError(t, c.Stop(context.Background(), "B1"))
		assert.Equal(t, 1, fake.Count(transport.TypeStopMediaRelay))

		c.HandleStopped(models.RelayStoppedEvent{MeetingID: "B1", Reason: "stopped by user"})
		assert.Equal(t, models.RelayIdle, c.State())
	})

	t.Run("FailureRevertsForRetry", func(t *testing.T) {
		c, fake, _ := setup(t)
		startToB1(t, c)
		c.HandleRequestResponse(models.RelayRequestResponseEvent{Decision: models.DecisionAccepted})
		fake.Fail(transport.TypeStopMediaRelay, errors.New("gateway down"))

		err := c.Stop(context.Background(), "B1")

		assert.Error(t, err)
		assert.Equal(t, models.RelayActive, c.State())

		fake.Fail(transport.TypeStopMediaRelay, nil)
		require.NoError(t, c.Stop(context.Background(), "B1"))
		assert.Equal(t, models.RelayStopping, c.State())
		assert.Equal(t, 2, fake.Count(transport.TypeStopMediaRelay))
	})

	t.Run("FailureWhileRequesting", func(t *testing.T) {
		c, fake, _ := setup(t)
		startToB1(t, c)
		fake.Fail(transport.TypeStopMediaRelay, errors.New("gateway down"))

		assert.Error(t, c.Stop(context.Background(), ""))
		assert.Equal(t, models.RelayRequesting, c.State())

		// A late acceptance still applies to the request that was never stopped
		c.HandleRequestResponse(models.RelayRequestResponseEvent{Decision: models.DecisionAccepted})
		assert.Equal(t, models.RelayActive, c.State())
	})

	t.Run("WrongDestination", func(t *testing.T) {
		c, fake, _ := setup(t)
		startToB1(t, c)

		err := c.Stop(context.Background(), "C1")

		assert.ErrorIs(t, err, models.ErrInvalidState)
		assert.Equal(t, 0, fake.Count(transport.TypeStopMediaRelay))
	})
}

func TestError_ResetsAndSurfacesMessage(t *testing.T) {
	c, _, notices := setup(t)
	startToB1(t, c)

	c.HandleError(models.RelayErrorEvent{MeetingID: "B1", Error: "token scope invalid"})

	assert.Equal(t, models.RelayIdle, c.State())
	require.Len(t, notices.messages(), 1)
	assert.Contains(t, notices.messages()[0], "token scope invalid")
}

func TestError_DefaultMessage(t *testing.T) {
	c, _, notices := setup(t)

	c.HandleError(models.RelayErrorEvent{MeetingID: "B1"})

	assert.Equal(t, []string{"Media relay error: " + DefaultErrorMessage}, notices.messages())
}

func TestStopped_FromAnyState(t *testing.T) {
	for _, accept := range []bool{false, true} {
		c, _, _ := setup(t)
		startToB1(t, c)
		if accept {
			c.HandleRequestResponse(models.RelayRequestResponseEvent{Decision: models.DecisionAccepted})
		}

		c.HandleStopped(models.RelayStoppedEvent{MeetingID: "B1"})
		assert.Equal(t, models.RelayIdle, c.State())
	}
}

func TestRequestReceived_AcceptsByDefault(t *testing.T) {
	c, fake, _ := setup(t)

	c.HandleRequestReceived(models.RelayRequestReceivedEvent{SourceMeetingID: "X", ParticipantID: "P"})

	require.Eventually(t, func() bool {
		return fake.Count(transport.TypeRespondToMediaRelay) == 1
	}, time.Second, 10*time.Millisecond)
	resp := fake.Calls()[0].Args.(transport.RelayResponse)
	assert.Equal(t, models.RoomID("X"), resp.SourceMeetingID)
	assert.Equal(t, models.DecisionAccepted, resp.Decision)

	// Answering an inbound request never touches the outbound link
	assert.Equal(t, models.RelayIdle, c.State())
}

func TestRequestReceived_CustomPolicy(t *testing.T) {
	fake := transporttest.NewFake()
	c := NewCoordinator(fake, func(models.RelayRequestReceivedEvent) models.Decision {
		return models.DecisionRejected
	}, nil, logging.Discard())

	c.HandleRequestReceived(models.RelayRequestReceivedEvent{SourceMeetingID: "X", ParticipantID: "P"})

	require.Eventually(t, func() bool {
		return fake.Count(transport.TypeRespondToMediaRelay) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, models.DecisionRejected, fake.Calls()[0].Args.(transport.RelayResponse).Decision)
}

func TestRecorder_SeesTransitions(t *testing.T) {
	fake := transporttest.NewFake()
	recorder := &transitionLog{}
	c := NewCoordinator(fake, nil, recorder, logging.Discard())

	startToB1(t, c)
	c.HandleRequestResponse(models.RelayRequestResponseEvent{Decision: models.DecisionAccepted})
	require.NoError(t, c.Stop(context.Background(), "B1"))
	c.HandleStopped(models.RelayStoppedEvent{MeetingID: "B1"})

	assert.Equal(t, [][2]models.RelayState{
		{models.RelayIdle, models.RelayRequesting},
		{models.RelayRequesting, models.RelayActive},
		{models.RelayActive, models.RelayStopping},
		{models.RelayStopping, models.RelayIdle},
	}, recorder.transitions)
}
