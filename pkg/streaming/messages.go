package streaming

import (
	"encoding/json"

	"github.com/racecontrol/racesim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRace = "start_race"
	TypeEndRace   = "end_race"
	TypeAddCar    = "add_car"
	TypeCarState  = "car_state"
	TypeLap       = "lap"
	TypePitStop   = "pit_stop"
	TypeRaceEvent = "race_event"
	TypeSnapshot  = "snapshot"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRacePayload carries race and circuit data.
type StartRacePayload struct {
	Race    *core.Race    `json:"race"`
	Circuit *core.Circuit `json:"circuit"`
}

// EndRacePayload carries the final result.
type EndRacePayload struct {
	Result *core.RaceResult `json:"result"`
}
