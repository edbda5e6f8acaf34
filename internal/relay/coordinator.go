// Package relay owns the lifecycle of the single outbound media relay link
// from the current room into the other room of the pair.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/navikt/roomswitch/internal/models"
	"github.com/navikt/roomswitch/internal/transport"
	"github.com/navikt/roomswitch/internal/utils"
)

const (
	// DefaultErrorMessage is shown when the transport reports a relay error without text
	DefaultErrorMessage = "Unknown error - likely token permission issue"

	respondTimeout = 10 * time.Second
)

// Relayer is the part of the transport the coordinator drives
type Relayer interface {
	RequestMediaRelay(ctx context.Context, req transport.RelayRequest) error
	StopMediaRelay(ctx context.Context, destination models.RoomID) error
	RespondToMediaRelay(ctx context.Context, source models.RoomID, decision models.Decision) error
}

// AcceptPolicy decides how to answer an inbound relay request
type AcceptPolicy func(event models.RelayRequestReceivedEvent) models.Decision

// AcceptAll accepts every inbound relay request regardless of its source
func AcceptAll(models.RelayRequestReceivedEvent) models.Decision {
	return models.DecisionAccepted
}

// Recorder counts relay state transitions
type Recorder interface {
	RelayTransition(from, to models.RelayState)
}

// RelayRequestError is a relay request the transport refused to send
type RelayRequestError struct {
	Destination models.RoomID
	Err         error
}

func (e *RelayRequestError) Error() string {
	return fmt.Sprintf("media relay request to %s failed: %v", e.Destination, e.Err)
}

func (e *RelayRequestError) Unwrap() error {
	return e.Err
}

// StartRequest describes the relay to open
type StartRequest struct {
	SourceMeetingID      models.RoomID
	DestinationMeetingID models.RoomID
	Token                string
	Kinds                []models.MediaKind
}

// Coordinator is the relay state machine. All transitions happen under mu;
// callbacks run after it is released.
type Coordinator struct {
	relayer  Relayer
	policy   AcceptPolicy
	recorder Recorder
	logger   *slog.Logger

	mu   sync.Mutex
	link *models.RelayLink

	callbackMu      sync.RWMutex
	updateCallbacks []func()
	noticeCallbacks []func(models.Notice)
}

// NewCoordinator creates an idle coordinator. A nil policy accepts everything.
func NewCoordinator(relayer Relayer, policy AcceptPolicy, recorder Recorder, logger *slog.Logger) *Coordinator {
	if policy == nil {
		policy = AcceptAll
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		relayer:  relayer,
		policy:   policy,
		recorder: recorder,
		logger:   logger.With("component", "relay"),
	}
}

// RegisterUpdateCallback registers a function called after every state change
func (c *Coordinator) RegisterUpdateCallback(callback func()) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.updateCallbacks = append(c.updateCallbacks, callback)
}

// RegisterNoticeCallback registers a function receiving user-visible notices
func (c *Coordinator) RegisterNoticeCallback(callback func(models.Notice)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.noticeCallbacks = append(c.noticeCallbacks, callback)
}

// State returns the current relay state
func (c *Coordinator) State() models.RelayState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Link returns a copy of the current link, if any
func (c *Coordinator) Link() (models.RelayLink, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return models.RelayLink{}, false
	}
	return *c.link, true
}

// Start requests a relay into the destination room. It is only valid while idle.
// A nil error means the request was sent; the link becomes active on the response event.
func (c *Coordinator) Start(ctx context.Context, req StartRequest) error {
	if req.DestinationMeetingID == "" {
		return fmt.Errorf("start relay without destination: %w", models.ErrPairIncomplete)
	}
	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = models.DefaultRelayKinds
	}

	c.mu.Lock()
	if c.link != nil {
		state := c.link.State
		c.mu.Unlock()
		return fmt.Errorf("start relay while %s: %w", state, models.ErrInvalidState)
	}
	link := &models.RelayLink{
		SourceMeetingID:      req.SourceMeetingID,
		DestinationMeetingID: req.DestinationMeetingID,
		State:                models.RelayRequesting,
	}
	c.setLocked(link)
	c.mu.Unlock()
	c.notifyUpdate()

	c.logger.Info("requesting media relay", "source", req.SourceMeetingID.String(), "destination", req.DestinationMeetingID.String())

	err := c.relayer.RequestMediaRelay(ctx, transport.RelayRequest{
		DestinationMeetingID: req.DestinationMeetingID,
		Token:                req.Token,
		Kinds:                kinds,
	})
	if err == nil {
		return nil
	}

	c.mu.Lock()
	reverted := c.link == link && link.State == models.RelayRequesting
	if reverted {
		c.setLocked(nil)
	}
	c.mu.Unlock()

	reqErr := &RelayRequestError{Destination: req.DestinationMeetingID, Err: err}
	c.logger.Error("media relay request failed", "error", err)
	if reverted {
		c.notifyUpdate()
	}
	c.notice(models.NoticeError, fmt.Sprintf("Media relay failed: %v", err))
	return reqErr
}

// Stop ends the relay to destination, or to the current destination when empty.
// It is a no-op while idle or already stopping. On success the link stays in
// Stopping until the transport confirms with a stopped event. When the stop
// command fails the link returns to its previous state so the stop can be retried.
func (c *Coordinator) Stop(ctx context.Context, destination models.RoomID) error {
	c.mu.Lock()
	if c.link == nil || c.link.State == models.RelayStopping {
		c.mu.Unlock()
		return nil
	}
	if destination == "" {
		destination = c.link.DestinationMeetingID
	}
	if destination != c.link.DestinationMeetingID {
		current := c.link.DestinationMeetingID
		c.mu.Unlock()
		return fmt.Errorf("stop relay to %s while relaying to %s: %w", destination, current, models.ErrInvalidState)
	}
	link := c.link
	previous := link.State
	c.transitionLocked(models.RelayStopping)
	c.mu.Unlock()
	c.notifyUpdate()

	c.logger.Info("stopping media relay", "destination", destination.String())

	err := c.relayer.StopMediaRelay(ctx, destination)
	if err == nil {
		return nil
	}

	c.mu.Lock()
	reverted := c.link == link && link.State == models.RelayStopping
	if reverted {
		c.transitionLocked(previous)
	}
	c.mu.Unlock()
	if reverted {
		c.notifyUpdate()
	}
	return fmt.Errorf("failed to stop media relay to %s: %w", destination, err)
}

// Reset forces the coordinator back to idle without talking to the transport
func (c *Coordinator) Reset() {
	c.mu.Lock()
	changed := c.link != nil
	if changed {
		c.setLocked(nil)
	}
	c.mu.Unlock()

	if changed {
		c.logger.Info("media relay reset locally")
		c.notifyUpdate()
	}
}

// HandleRequestReceived answers an inbound relay request using the accept policy.
// The answer is sent off the event path so a slow ack never stalls event delivery.
func (c *Coordinator) HandleRequestReceived(event models.RelayRequestReceivedEvent) {
	decision := c.policy(event)
	c.logger.Info("received media relay request",
		"source", utils.SanitizeLogString(event.SourceMeetingID.String()),
		"participant", utils.SanitizeLogString(event.ParticipantID),
		"decision", string(decision))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), respondTimeout)
		defer cancel()
		if err := c.relayer.RespondToMediaRelay(ctx, event.SourceMeetingID, decision); err != nil {
			c.logger.Error("failed to answer media relay request", "error", err)
		}
	}()
}

// HandleRequestResponse applies the destination's answer while a request is pending
func (c *Coordinator) HandleRequestResponse(event models.RelayRequestResponseEvent) {
	c.mu.Lock()
	if c.stateLocked() != models.RelayRequesting {
		state := c.stateLocked()
		c.mu.Unlock()
		c.logger.Debug("ignoring relay response outside request", "state", state.String(), "decision", string(event.Decision))
		return
	}

	accepted := event.Decision == models.DecisionAccepted
	if accepted {
		c.transitionLocked(models.RelayActive)
	} else {
		c.setLocked(nil)
	}
	c.mu.Unlock()
	c.notifyUpdate()

	if accepted {
		c.logger.Info("media relay accepted", "participant", utils.SanitizeLogString(event.ParticipantID))
		c.notice(models.NoticeInfo, "Media relay started")
		return
	}
	c.logger.Warn("media relay rejected", "participant", utils.SanitizeLogString(event.ParticipantID), "decision", string(event.Decision))
	c.notice(models.NoticeWarn, "Media relay was rejected by the other room")
}

// HandleStarted confirms an existing link as active. It never creates one.
func (c *Coordinator) HandleStarted(event models.RelayStartedEvent) {
	c.mu.Lock()
	state := c.stateLocked()
	changed := state == models.RelayRequesting
	if changed {
		c.transitionLocked(models.RelayActive)
	}
	c.mu.Unlock()

	meetingID := utils.SanitizeLogString(event.MeetingID.String())
	switch {
	case changed:
		c.logger.Info("media relay started", "destination", meetingID)
		c.notifyUpdate()
	case state == models.RelayActive:
		c.logger.Debug("media relay start confirmed", "destination", meetingID)
	default:
		c.logger.Debug("ignoring relay start without a pending link", "state", state.String(), "destination", meetingID)
	}
}

// HandleStopped returns to idle from any state
func (c *Coordinator) HandleStopped(event models.RelayStoppedEvent) {
	c.mu.Lock()
	changed := c.link != nil
	if changed {
		c.setLocked(nil)
	}
	c.mu.Unlock()

	c.logger.Info("media relay stopped",
		"destination", utils.SanitizeLogString(event.MeetingID.String()),
		"reason", utils.SanitizeLogString(event.Reason))
	if changed {
		c.notifyUpdate()
	}
}

// HandleError returns to idle from any state and surfaces the error text
func (c *Coordinator) HandleError(event models.RelayErrorEvent) {
	c.mu.Lock()
	changed := c.link != nil
	if changed {
		c.setLocked(nil)
	}
	c.mu.Unlock()

	msg := event.Error
	if msg == "" {
		msg = DefaultErrorMessage
	}
	c.logger.Error("media relay error",
		"destination", utils.SanitizeLogString(event.MeetingID.String()),
		"error", utils.SanitizeLogString(msg))
	if changed {
		c.notifyUpdate()
	}
	c.notice(models.NoticeError, "Media relay error: "+msg)
}

func (c *Coordinator) stateLocked() models.RelayState {
	if c.link == nil {
		return models.RelayIdle
	}
	return c.link.State
}

// setLocked replaces the link; nil means idle
func (c *Coordinator) setLocked(link *models.RelayLink) {
	from := c.stateLocked()
	c.link = link
	c.record(from, c.stateLocked())
}

func (c *Coordinator) transitionLocked(to models.RelayState) {
	from := c.link.State
	c.link.State = to
	c.record(from, to)
}

func (c *Coordinator) record(from, to models.RelayState) {
	if c.recorder != nil && from != to {
		c.recorder.RelayTransition(from, to)
	}
}

func (c *Coordinator) notifyUpdate() {
	c.callbackMu.RLock()
	callbacks := append([]func(){}, c.updateCallbacks...)
	c.callbackMu.RUnlock()

	for _, callback := range callbacks {
		callback()
	}
}

func (c *Coordinator) notice(level models.NoticeLevel, message string) {
	n := models.Notice{Level: level, Message: message, Time: time.Now()}

	c.callbackMu.RLock()
	callbacks := append([]func(models.Notice){}, c.noticeCallbacks...)
	c.callbackMu.RUnlock()

	for _, callback := range callbacks {
		callback(n)
	}
}
