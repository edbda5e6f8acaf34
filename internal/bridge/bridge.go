// Package bridge translates the transport's raw event stream into calls on
// the session and relay coordinators, one event at a time in arrival order.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/navikt/roomswitch/internal/models"
	"github.com/navikt/roomswitch/internal/transport"
	"github.com/navikt/roomswitch/internal/utils"
)

// SessionHandler consumes room membership events
type SessionHandler interface {
	HandleMeetingJoined(event models.MeetingJoinedEvent)
	HandleMeetingLeft(event models.MeetingLeftEvent)
}

// RelayHandler consumes media relay events
type RelayHandler interface {
	HandleRequestReceived(event models.RelayRequestReceivedEvent)
	HandleRequestResponse(event models.RelayRequestResponseEvent)
	HandleStarted(event models.RelayStartedEvent)
	HandleStopped(event models.RelayStoppedEvent)
	HandleError(event models.RelayErrorEvent)
}

// Recorder counts dispatched events by kind
type Recorder interface {
	TransportEvent(kind string)
}

// kinds maps normalized transport event names to event kinds
var kinds = map[string]models.EventKind{
	"meetingjoined":             models.EventMeetingJoined,
	"meetingleft":               models.EventMeetingLeft,
	"mediarelayrequestreceived": models.EventMediaRelayRequestReceived,
	"mediarelayrequestresponse": models.EventMediaRelayRequestResponse,
	"mediarelaystarted":         models.EventMediaRelayStarted,
	"mediarelaystopped":         models.EventMediaRelayStopped,
	"mediarelayerror":           models.EventMediaRelayError,
}

// Normalize folds a transport event name so that onMeetingJoined,
// meeting-joined and meeting_joined compare equal
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "on")
	return strings.NewReplacer("-", "", "_", "").Replace(name)
}

// KindOf returns the event kind for a raw transport event name
func KindOf(name string) (models.EventKind, bool) {
	kind, ok := kinds[Normalize(name)]
	return kind, ok
}

// Bridge forwards transport events to exactly one coordinator each
type Bridge struct {
	session  SessionHandler
	relay    RelayHandler
	recorder Recorder
	logger   *slog.Logger
}

// New creates a bridge; recorder may be nil
func New(session SessionHandler, relay RelayHandler, recorder Recorder, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		session:  session,
		relay:    relay,
		recorder: recorder,
		logger:   logger.With("component", "bridge"),
	}
}

// Run applies events until the stream closes or ctx is done
func (b *Bridge) Run(ctx context.Context, events <-chan transport.RawEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				b.logger.Info("transport event stream closed")
				return
			}
			if err := b.Dispatch(event); err != nil {
				b.logger.Warn("discarding transport event", "event", utils.SanitizeLogString(event.Name), "error", err)
			}
		}
	}
}

// Dispatch decodes a single event and hands it to its coordinator.
// Unknown names and malformed payloads are returned as errors and nothing is applied.
func (b *Bridge) Dispatch(event transport.RawEvent) error {
	kind, ok := KindOf(event.Name)
	if !ok {
		return fmt.Errorf("unknown event %q", event.Name)
	}

	b.logger.Debug("transport event", "kind", string(kind))

	var err error
	switch kind {
	case models.EventMeetingJoined:
		var ev models.MeetingJoinedEvent
		if err = decode(event.Payload, &ev); err == nil {
			b.session.HandleMeetingJoined(ev)
		}
	case models.EventMeetingLeft:
		var ev models.MeetingLeftEvent
		if err = decode(event.Payload, &ev); err == nil {
			b.session.HandleMeetingLeft(ev)
		}
	case models.EventMediaRelayRequestReceived:
		var ev models.RelayRequestReceivedEvent
		if err = decode(event.Payload, &ev); err == nil {
			b.relay.HandleRequestReceived(ev)
		}
	case models.EventMediaRelayRequestResponse:
		var ev models.RelayRequestResponseEvent
		if err = decode(event.Payload, &ev); err == nil {
			b.relay.HandleRequestResponse(ev)
		}
	case models.EventMediaRelayStarted:
		var ev models.RelayStartedEvent
		if err = decode(event.Payload, &ev); err == nil {
			b.relay.HandleStarted(ev)
		}
	case models.EventMediaRelayStopped:
		var ev models.RelayStoppedEvent
		if err = decode(event.Payload, &ev); err == nil {
			b.relay.HandleStopped(ev)
		}
	case models.EventMediaRelayError:
		var ev models.RelayErrorEvent
		if err = decode(event.Payload, &ev); err == nil {
			b.relay.HandleError(ev)
		}
	}
	if err != nil {
		return fmt.Errorf("malformed %s payload: %w", kind, err)
	}

	if b.recorder != nil {
		b.recorder.TransportEvent(string(kind))
	}
	return nil
}

// decode accepts an empty payload as the zero event
func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return json.Unmarshal(payload, v)
}
