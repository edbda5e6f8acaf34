// Package session owns the local participant's membership in one room and
// the compound switch between the two rooms of the pair.
package session

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

// DefaultGracePeriod is the pause between leaving one room and joining the other
const DefaultGracePeriod = 500 * time.Millisecond

// Switch outcomes reported to the recorder
const (
	SwitchSucceeded = "succeeded"
	SwitchFailed    = "failed"
	SwitchRejected  = "rejected"
)

// Member is the part of the transport the controller drives
type Member interface {
	Join(ctx context.Context, cfg transport.JoinConfig) error
	Leave(ctx context.Context) error
	ToggleMic(ctx context.Context) error
	ToggleWebcam(ctx context.Context) error
}

// RelayTeardown is what a switch needs from the relay coordinator
type RelayTeardown interface {
	State() models.RelayState
	Stop(ctx context.Context, destination models.RoomID) error
	Reset()
}

// Recorder counts switch outcomes
type Recorder interface {
	SwitchResult(outcome string)
}

// Options configure media defaults and switch timing
type Options struct {
	MicEnabled    bool
	WebcamEnabled bool
	GracePeriod   time.Duration
}

// SwitchError reports the step at which a room switch stopped.
// The session is left wherever that step put it.
type SwitchError struct {
	Step string
	From models.RoomID
	To   models.RoomID
	Err  error
}

func (e *SwitchError) Error() string {
	return fmt.Sprintf("room switch from %s to %s failed at %s: %v", e.From, e.To, e.Step, e.Err)
}

func (e *SwitchError) Unwrap() error {
	return e.Err
}

// Controller is the session state machine
type Controller struct {
	member   Member
	relay    RelayTeardown
	opts     Options
	recorder Recorder
	logger   *slog.Logger

	// gate orders the start of a switch against WithJoined callers
	gate sync.Mutex

	mu        sync.Mutex
	session   *models.Session
	switching bool
	// left is closed when the pending leave is confirmed
	left   chan struct{}
	mic    bool
	webcam bool

	callbackMu      sync.RWMutex
	updateCallbacks []func()
}

// NewController creates a disconnected controller. relay and recorder may be nil.
func NewController(member Member, relay RelayTeardown, opts Options, recorder Recorder, logger *slog.Logger) *Controller {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		member:   member,
		relay:    relay,
		opts:     opts,
		recorder: recorder,
		logger:   logger.With("component", "session"),
	}
}

// RegisterUpdateCallback registers a function called after every state change
func (c *Controller) RegisterUpdateCallback(callback func()) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.updateCallbacks = append(c.updateCallbacks, callback)
}

// State returns the current session state
func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return models.SessionDisconnected
	}
	return c.session.State
}

// Current returns a copy of the session, if one exists
func (c *Controller) Current() (models.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return models.Session{}, false
	}
	return *c.session, true
}

// Switching reports whether a room switch is in flight
func (c *Controller) Switching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.switching
}

// Media returns the local microphone and camera state
func (c *Controller) Media() (mic, webcam bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mic, c.webcam
}

// Join joins roomID. It is only valid while disconnected; the session becomes
// joined when the transport confirms.
func (c *Controller) Join(ctx context.Context, roomID models.RoomID, token, displayName string) error {
	if c.Switching() {
		return models.ErrSwitchInProgress
	}
	return c.join(ctx, roomID, token, displayName)
}

// Leave leaves the current room. It is only valid while joined; the session
// is cleared when the transport confirms.
func (c *Controller) Leave(ctx context.Context) error {
	if c.Switching() {
		return models.ErrSwitchInProgress
	}
	_, err := c.leave(ctx)
	return err
}

func (c *Controller) join(ctx context.Context, roomID models.RoomID, token, displayName string) error {
	if roomID == "" {
		return fmt.Errorf("join without room: %w", models.ErrInvalidState)
	}

	c.mu.Lock()
	if c.session != nil {
		state := c.session.State
		c.mu.Unlock()
		return fmt.Errorf("join while %s: %w", state, models.ErrInvalidState)
	}
	s := &models.Session{
		MeetingID:   roomID,
		AuthToken:   token,
		DisplayName: displayName,
		State:       models.SessionJoining,
	}
	c.session = s
	c.mic, c.webcam = c.opts.MicEnabled, c.opts.WebcamEnabled
	c.mu.Unlock()
	c.notifyUpdate()

	c.logger.Info("joining room", "room", roomID.String(), "name", utils.SanitizeLogString(displayName))

	err := c.member.Join(ctx, transport.JoinConfig{
		MeetingID:     roomID,
		Token:         token,
		Name:          displayName,
		MicEnabled:    c.opts.MicEnabled,
		WebcamEnabled: c.opts.WebcamEnabled,
	})
	if err == nil {
		return nil
	}

	c.mu.Lock()
	reverted := c.session == s && s.State == models.SessionJoining
	if reverted {
		c.session = nil
	}
	c.mu.Unlock()
	if reverted {
		c.notifyUpdate()
	}
	return fmt.Errorf("failed to join room %s: %w", roomID, err)
}

// leave returns a channel closed on the leave confirmation
func (c *Controller) leave(ctx context.Context) (<-chan struct{}, error) {
	c.mu.Lock()
	if c.session == nil || c.session.State != models.SessionJoined {
		state := models.SessionDisconnected
		if c.session != nil {
			state = c.session.State
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("leave while %s: %w", state, models.ErrInvalidState)
	}
	s := c.session
	s.State = models.SessionLeaving
	left := make(chan struct{})
	c.left = left
	c.mu.Unlock()
	c.notifyUpdate()

	c.logger.Info("leaving room", "room", s.MeetingID.String())

	if err := c.member.Leave(ctx); err != nil {
		c.mu.Lock()
		reverted := c.session == s && s.State == models.SessionLeaving
		if reverted {
			s.State = models.SessionJoined
			c.left = nil
		}
		c.mu.Unlock()
		if reverted {
			c.notifyUpdate()
		}
		return nil, fmt.Errorf("failed to leave room %s: %w", s.MeetingID, err)
	}
	return left, nil
}

// SwitchRoom moves the session to target: stop any relay, leave, wait the
// grace period and the leave confirmation, then join target with the same
// token and display name. A failed relay stop never blocks the switch.
func (c *Controller) SwitchRoom(ctx context.Context, target models.RoomID) (err error) {
	from, token, name, err := c.beginSwitch(target)
	if err != nil {
		c.recordSwitch(SwitchRejected)
		return err
	}
	c.notifyUpdate()

	defer func() {
		c.mu.Lock()
		c.switching = false
		c.mu.Unlock()
		c.notifyUpdate()

		if err != nil {
			c.recordSwitch(SwitchFailed)
			c.logger.Error("room switch failed", "error", err)
			return
		}
		c.recordSwitch(SwitchSucceeded)
	}()

	c.logger.Info("switching room", "from", from.String(), "to", target.String())

	c.teardownRelay(ctx)

	left, err := c.leave(ctx)
	if err != nil {
		return &SwitchError{Step: "leave", From: from, To: target, Err: err}
	}

	select {
	case <-time.After(c.opts.GracePeriod):
	case <-ctx.Done():
		return &SwitchError{Step: "grace period", From: from, To: target, Err: ctx.Err()}
	}

	select {
	case <-left:
	case <-ctx.Done():
		return &SwitchError{Step: "leave confirmation", From: from, To: target, Err: ctx.Err()}
	}

	if err := c.join(ctx, target, token, name); err != nil {
		return &SwitchError{Step: "join", From: from, To: target, Err: err}
	}
	return nil
}

// beginSwitch validates a switch to target and marks the controller as switching
func (c *Controller) beginSwitch(target models.RoomID) (from models.RoomID, token, name string, err error) {
	c.gate.Lock()
	defer c.gate.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.switching {
		return "", "", "", models.ErrSwitchInProgress
	}
	if c.session == nil || c.session.State != models.SessionJoined {
		state := models.SessionDisconnected
		if c.session != nil {
			state = c.session.State
		}
		return "", "", "", fmt.Errorf("switch while %s: %w", state, models.ErrInvalidState)
	}
	if target == "" {
		return "", "", "", models.ErrPairIncomplete
	}
	from = c.session.MeetingID
	if target == from {
		return "", "", "", fmt.Errorf("already in room %s: %w", target, models.ErrInvalidState)
	}
	c.switching = true
	return from, c.session.AuthToken, c.session.DisplayName, nil
}

// WithJoined runs fn with the joined room while no switch can begin. A switch
// requested meanwhile starts once fn returns, so anything fn sets up is seen
// by its relay teardown.
func (c *Controller) WithJoined(fn func(room models.RoomID) error) error {
	c.gate.Lock()
	defer c.gate.Unlock()

	c.mu.Lock()
	switching := c.switching
	state := models.SessionDisconnected
	var room models.RoomID
	if c.session != nil {
		state, room = c.session.State, c.session.MeetingID
	}
	c.mu.Unlock()

	if switching {
		return models.ErrSwitchInProgress
	}
	if state != models.SessionJoined {
		return fmt.Errorf("not joined while %s: %w", state, models.ErrInvalidState)
	}
	return fn(room)
}

// teardownRelay stops a requesting or active relay and forces any relay,
// including one stuck stopping, idle locally
func (c *Controller) teardownRelay(ctx context.Context) {
	if c.relay == nil {
		return
	}
	state := c.relay.State()
	if state == models.RelayIdle {
		return
	}
	if state == models.RelayActive || state == models.RelayRequesting {
		if err := c.relay.Stop(ctx, ""); err != nil {
			c.logger.Warn("RelayTeardownWarning: relay stop failed, continuing switch", "relay_state", state.String(), "error", err)
		}
	}
	c.relay.Reset()
}

// ToggleMic flips the microphone while joined
func (c *Controller) ToggleMic(ctx context.Context) error {
	return c.toggle(ctx, "mic", c.member.ToggleMic, func() { c.mic = !c.mic })
}

// ToggleWebcam flips the camera while joined
func (c *Controller) ToggleWebcam(ctx context.Context) error {
	return c.toggle(ctx, "webcam", c.member.ToggleWebcam, func() { c.webcam = !c.webcam })
}

func (c *Controller) toggle(ctx context.Context, what string, call func(context.Context) error, flip func()) error {
	if c.State() != models.SessionJoined {
		return fmt.Errorf("toggle %s while not joined: %w", what, models.ErrInvalidState)
	}
	if err := call(ctx); err != nil {
		return fmt.Errorf("failed to toggle %s: %w", what, err)
	}

	c.mu.Lock()
	flip()
	c.mu.Unlock()
	c.notifyUpdate()
	return nil
}

// HandleMeetingJoined confirms a pending join
func (c *Controller) HandleMeetingJoined(event models.MeetingJoinedEvent) {
	c.mu.Lock()
	s := c.session
	if s == nil || s.State != models.SessionJoining || !sameRoom(s.MeetingID, event.MeetingID) {
		c.mu.Unlock()
		c.logger.Debug("ignoring join confirmation", "room", utils.SanitizeLogString(event.MeetingID.String()))
		return
	}
	s.State = models.SessionJoined
	room := s.MeetingID
	c.mu.Unlock()

	c.logger.Info("joined room", "room", room.String())
	c.notifyUpdate()
}

// HandleMeetingLeft confirms a pending leave. A leave while joined came from
// the remote side and also ends the session.
func (c *Controller) HandleMeetingLeft(event models.MeetingLeftEvent) {
	c.mu.Lock()
	s := c.session
	if s == nil || (s.State != models.SessionLeaving && s.State != models.SessionJoined) || !sameRoom(s.MeetingID, event.MeetingID) {
		c.mu.Unlock()
		c.logger.Debug("ignoring leave confirmation", "room", utils.SanitizeLogString(event.MeetingID.String()))
		return
	}
	remote := s.State == models.SessionJoined
	c.session = nil
	if c.left != nil {
		close(c.left)
		c.left = nil
	}
	c.mu.Unlock()

	if remote {
		c.logger.Warn("removed from room", "room", s.MeetingID.String(), "reason", utils.SanitizeLogString(event.Reason))
	} else {
		c.logger.Info("left room", "room", s.MeetingID.String())
	}
	c.notifyUpdate()
}

// sameRoom treats an event without a room id as referring to the current room
func sameRoom(current, reported models.RoomID) bool {
	return reported == "" || reported == current
}

func (c *Controller) recordSwitch(outcome string) {
	if c.recorder != nil {
		c.recorder.SwitchResult(outcome)
	}
}

func (c *Controller) notifyUpdate() {
	c.callbackMu.RLock()
	callbacks := append([]func(){}, c.updateCallbacks...)
	c.callbackMu.RUnlock()

	for _, callback := range callbacks {
		callback()
	}
}
