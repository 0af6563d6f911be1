package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/racecontrol/racesim/pkg/core"
	"github.com/racecontrol/racesim/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams race data over WebSocket to a live viewer.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	feed *feed
	cfg  Config
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		feed: newFeed(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.feed.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.feed.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and queues it without waiting.
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.feed.send(data)
	return nil
}

// StartRace sends race and circuit data and waits for server ack. It also starts the set of
// messages replayed after a reconnect.
func (b *Backend) StartRace(race *core.Race, circuit *core.Circuit) error {
	data, err := marshalEnvelope(streaming.TypeStartRace, streaming.StartRacePayload{Race: race, Circuit: circuit})
	if err != nil {
		return err
	}
	b.feed.startRace(data)
	return b.feed.request(data, streaming.TypeStartRace, ackTimeout)
}

// EndRace sends the final result and waits for server ack.
func (b *Backend) EndRace(result *core.RaceResult) error {
	data, err := marshalEnvelope(streaming.TypeEndRace, streaming.EndRacePayload{Result: result})
	if err != nil {
		return err
	}
	err = b.feed.request(data, streaming.TypeEndRace, ackTimeout)
	b.feed.forget()
	return err
}

// AddCar announces a car and keeps it for the reconnect roster.
func (b *Backend) AddCar(c *core.Car) error {
	data, err := marshalEnvelope(streaming.TypeAddCar, c)
	if err != nil {
		return err
	}
	b.feed.rememberCar(c.ID, data)
	b.feed.send(data)
	return nil
}

func (b *Backend) RecordCarState(s *core.CarState) error {
	return b.sendEnvelope(streaming.TypeCarState, s)
}

func (b *Backend) RecordLap(l *core.LapEvent) error {
	return b.sendEnvelope(streaming.TypeLap, l)
}

func (b *Backend) RecordPitStop(p *core.PitStopEvent) error {
	return b.sendEnvelope(streaming.TypePitStop, p)
}

func (b *Backend) RecordRaceEvent(e *core.RaceEvent) error {
	return b.sendEnvelope(streaming.TypeRaceEvent, e)
}

// PublishSnapshot streams a full leaderboard frame for live viewers. A frame still waiting to be
// written is replaced rather than queued behind.
func (b *Backend) PublishSnapshot(s core.Snapshot) error {
	data, err := marshalEnvelope(streaming.TypeSnapshot, s)
	if err != nil {
		return err
	}
	b.feed.publishFrame(data)
	return nil
}
