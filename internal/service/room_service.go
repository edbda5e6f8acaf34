// Package service holds the user-facing room actions on top of the
// allocator, the pair store and the session and relay coordinators.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/navikt/roomswitch/internal/config"
	"github.com/navikt/roomswitch/internal/models"
	"github.com/navikt/roomswitch/internal/relay"
	"github.com/navikt/roomswitch/internal/repository"
	"github.com/navikt/roomswitch/internal/session"
)

// ErrMissingRoom is returned when a join by id carries no room id
var ErrMissingRoom = errors.New("room id is required")

const storeTimeout = 5 * time.Second

// Allocator provides room pairs
type Allocator interface {
	Allocate(ctx context.Context) (models.RoomPair, error)
	FromExternalID(id models.RoomID) models.RoomPair
}

// StatusCallback receives a fresh snapshot after every state change
type StatusCallback func(models.Status)

// NoticeCallback receives user-visible notices
type NoticeCallback func(models.Notice)

// RoomService provides the actions a participant can take
type RoomService struct {
	allocator Allocator
	repo      repository.Repository
	session   *session.Controller
	relay     *relay.Coordinator
	cfg       config.SessionConfig
	token     string
	logger    *slog.Logger

	callbackMu      sync.RWMutex
	updateCallbacks []StatusCallback
	noticeCallbacks []NoticeCallback
}

// NewRoomService creates a RoomService and subscribes to both coordinators.
// token is the credential used to join rooms and request relays.
func NewRoomService(
	allocator Allocator,
	repo repository.Repository,
	sessionCtrl *session.Controller,
	relayCoord *relay.Coordinator,
	cfg config.SessionConfig,
	token string,
	logger *slog.Logger,
) *RoomService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RoomService{
		allocator: allocator,
		repo:      repo,
		session:   sessionCtrl,
		relay:     relayCoord,
		cfg:       cfg,
		token:     token,
		logger:    logger.With("component", "service"),
	}

	sessionCtrl.RegisterUpdateCallback(s.notifyUpdate)
	relayCoord.RegisterUpdateCallback(s.notifyUpdate)
	relayCoord.RegisterNoticeCallback(s.notifyNotice)

	return s
}

// RegisterUpdateCallback registers a callback called with a snapshot on every change
func (s *RoomService) RegisterUpdateCallback(callback StatusCallback) {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()
	s.updateCallbacks = append(s.updateCallbacks, callback)
}

// RegisterNoticeCallback registers a callback for user-visible notices
func (s *RoomService) RegisterNoticeCallback(callback NoticeCallback) {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()
	s.noticeCallbacks = append(s.noticeCallbacks, callback)
}

// PrepareAndJoin provisions a fresh pair, stores it and joins its first room
func (s *RoomService) PrepareAndJoin(ctx context.Context) (models.RoomPair, error) {
	if state := s.session.State(); state != models.SessionDisconnected {
		return models.RoomPair{}, fmt.Errorf("prepare rooms while %s: %w", state, models.ErrInvalidState)
	}

	pair, err := s.allocator.Allocate(ctx)
	if err != nil {
		s.notice(models.NoticeError, "Failed to create rooms. Check token and API endpoint.")
		return models.RoomPair{}, err
	}

	if err := s.repo.SavePair(ctx, pair); err != nil {
		return models.RoomPair{}, fmt.Errorf("failed to store room pair: %w", err)
	}
	s.notifyUpdate()

	return pair, s.join(ctx, pair.RoomA)
}

// JoinByID joins a known room. The stored pair is kept when it contains id,
// otherwise it is replaced by a partial pair holding only id.
func (s *RoomService) JoinByID(ctx context.Context, id models.RoomID) (models.RoomPair, error) {
	if id == "" {
		return models.RoomPair{}, ErrMissingRoom
	}
	if state := s.session.State(); state != models.SessionDisconnected {
		return models.RoomPair{}, fmt.Errorf("join while %s: %w", state, models.ErrInvalidState)
	}

	pair, err := s.pair(ctx)
	if err != nil {
		return models.RoomPair{}, err
	}
	if !pair.Contains(id) {
		pair = s.allocator.FromExternalID(id)
		if err := s.repo.SavePair(ctx, pair); err != nil {
			return models.RoomPair{}, fmt.Errorf("failed to store room pair: %w", err)
		}
		s.notifyUpdate()
	}

	return pair, s.join(ctx, id)
}

// SwitchRoom moves the session to the other room of the pair and returns it
func (s *RoomService) SwitchRoom(ctx context.Context) (models.RoomID, error) {
	current, ok := s.session.Current()
	if !ok {
		return "", fmt.Errorf("switch without a session: %w", models.ErrInvalidState)
	}

	target, err := s.otherRoom(ctx, current.MeetingID)
	if err != nil {
		return "", err
	}

	if s.cfg.SwitchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SwitchTimeout)
		defer cancel()
	}

	if err := s.session.SwitchRoom(ctx, target); err != nil {
		var switchErr *session.SwitchError
		if errors.As(err, &switchErr) {
			s.notice(models.NoticeError, "Room switch failed: "+switchErr.Err.Error())
		}
		return "", err
	}
	return target, nil
}

// StartRelay relays the participant's media from the current room into the
// other room. No switch can begin until the request has been sent.
func (s *RoomService) StartRelay(ctx context.Context) error {
	return s.session.WithJoined(func(current models.RoomID) error {
		destination, err := s.otherRoom(ctx, current)
		if err != nil {
			return err
		}

		return s.relay.Start(ctx, relay.StartRequest{
			SourceMeetingID:      current,
			DestinationMeetingID: destination,
			Token:                s.token,
			Kinds:                s.cfg.RelayKinds,
		})
	})
}

// StopRelay stops the relay; it does nothing when no relay exists
func (s *RoomService) StopRelay(ctx context.Context) error {
	return s.relay.Stop(ctx, "")
}

// Leave stops any relay on a best-effort basis and leaves the current room
func (s *RoomService) Leave(ctx context.Context) error {
	if s.relay.State() != models.RelayIdle {
		if err := s.relay.Stop(ctx, ""); err != nil {
			s.logger.Warn("relay stop before leave failed", "error", err)
		}
		s.relay.Reset()
	}
	return s.session.Leave(ctx)
}

// ToggleMic flips the microphone
func (s *RoomService) ToggleMic(ctx context.Context) error {
	return s.session.ToggleMic(ctx)
}

// ToggleWebcam flips the camera
func (s *RoomService) ToggleWebcam(ctx context.Context) error {
	return s.session.ToggleWebcam(ctx)
}

// ClearRooms forgets the stored pair. Only valid while disconnected.
func (s *RoomService) ClearRooms(ctx context.Context) error {
	if state := s.session.State(); state != models.SessionDisconnected {
		return fmt.Errorf("clear rooms while %s: %w", state, models.ErrInvalidState)
	}
	if err := s.repo.ClearPair(ctx); err != nil {
		return err
	}
	s.notifyUpdate()
	return nil
}

// Status returns a snapshot of the pair, session and relay
func (s *RoomService) Status(ctx context.Context) models.Status {
	pair, err := s.pair(ctx)
	if err != nil {
		s.logger.Warn("failed to read room pair", "error", err)
	}

	status := models.Status{
		Pair:         pair,
		SessionState: models.SessionDisconnected,
		Switching:    s.session.Switching(),
		RelayState:   s.relay.State(),
	}
	if current, ok := s.session.Current(); ok {
		status.SessionState = current.State
		status.CurrentRoom = current.MeetingID
		status.DisplayName = current.DisplayName
		status.MicEnabled, status.WebcamEnabled = s.session.Media()
		status.RelayAvailable = current.State == models.SessionJoined && pair.Other(current.MeetingID) != ""
	}
	if link, ok := s.relay.Link(); ok {
		status.RelayTarget = link.DestinationMeetingID
	}
	return status
}

func (s *RoomService) join(ctx context.Context, id models.RoomID) error {
	name := s.cfg.DisplayName
	if name == "" {
		name = models.DisplayNameFor(id)
	}
	return s.session.Join(ctx, id, s.token, name)
}

// pair returns the stored pair, or the zero pair when none is stored
func (s *RoomService) pair(ctx context.Context) (models.RoomPair, error) {
	pair, err := s.repo.GetPair(ctx)
	if errors.Is(err, models.ErrPairNotFound) {
		return models.RoomPair{}, nil
	}
	if err != nil {
		return models.RoomPair{}, fmt.Errorf("failed to read room pair: %w", err)
	}
	return pair, nil
}

func (s *RoomService) otherRoom(ctx context.Context, current models.RoomID) (models.RoomID, error) {
	pair, err := s.pair(ctx)
	if err != nil {
		return "", err
	}
	other := pair.Other(current)
	if other == "" {
		return "", models.ErrPairIncomplete
	}
	return other, nil
}

func (s *RoomService) notifyUpdate() {
	s.callbackMu.RLock()
	callbacks := append([]StatusCallback{}, s.updateCallbacks...)
	s.callbackMu.RUnlock()
	if len(callbacks) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	status := s.Status(ctx)

	for _, callback := range callbacks {
		callback(status)
	}
}

func (s *RoomService) notifyNotice(n models.Notice) {
	s.callbackMu.RLock()
	callbacks := append([]NoticeCallback{}, s.noticeCallbacks...)
	s.callbackMu.RUnlock()

	for _, callback := range callbacks {
		callback(n)
	}
}

func (s *RoomService) notice(level models.NoticeLevel, message string) {
	s.notifyNotice(models.Notice{Level: level, Message: message, Time: time.Now()})
}
