// Package streaming defines the wire format of the live journey stream.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/RogersSierra/extension/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartJourney = "start_journey"
	TypeEndJourney   = "end_journey"
	TypeAddTrain     = "add_train"
	TypeTrainSample  = "train_sample"
	TypeTrainEvent   = "train_event"
	TypeAck          = "ack"
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

// StartJourneyPayload carries the journey header.
type StartJourneyPayload struct {
	Journey *core.Journey `json:"journey"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Unmarshal decodes an envelope and its payload into v. A nil v only
// decodes the envelope.
func Unmarshal(data []byte, v any) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("unmarshal envelope: %w", err)
	}
	if v != nil && len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return env.Type, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
	}
	return env.Type, nil
}
