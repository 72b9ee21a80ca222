package ws

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/playmatatu/billiards/internal/game"
)

// Inbound message types.
const (
	MsgShot         = "shot"
	MsgRerack       = "rerack"
	MsgPlaceCueBall = "place_cue_ball"
	MsgGetState     = "get_state"
)

// WSMessage is the envelope of every client message.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ShotData is the payload of a shot message.
type ShotData struct {
	Direction game.Vec2 `json:"direction"`
	Magnitude float64   `json:"magnitude"`
	Screw     float64   `json:"screw"`
	English   float64   `json:"english"`
}

func (d ShotData) Shot() game.Shot {
	return game.Shot{Direction: d.Direction, Magnitude: d.Magnitude, Screw: d.Screw, English: d.English}
}

// PlaceCueBallData is the payload of a place_cue_ball message.
type PlaceCueBallData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const messageSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"enum": ["shot", "rerack", "place_cue_ball", "get_state"]},
    "data": {"type": ["object", "null"]}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "shot"}}},
      "then": {
        "required": ["data"],
        "properties": {"data": {
          "type": "object",
          "required": ["direction", "magnitude"],
          "properties": {
            "direction": {
              "type": "object",
              "required": ["x", "y"],
              "properties": {"x": {"type": "number"}, "y": {"type": "number"}}
            },
            "magnitude": {"type": "number", "exclusiveMinimum": 0},
            "screw": {"type": "number", "minimum": -1, "maximum": 1},
            "english": {"type": "number", "minimum": -1, "maximum": 1}
          }
        }}
      }
    },
    {
      "if": {"properties": {"type": {"const": "place_cue_ball"}}},
      "then": {
        "required": ["data"],
        "properties": {"data": {
          "type": "object",
          "required": ["x", "y"],
          "properties": {"x": {"type": "number"}, "y": {"type": "number"}}
        }}
      }
    }
  ]
}`

var inboundSchema = jsonschema.MustCompileString("inbound.schema.json", messageSchema)

// ParseMessage validates raw against the inbound schema and decodes the
// envelope.
func ParseMessage(raw []byte) (WSMessage, error) {
	var msg WSMessage
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return msg, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := inboundSchema.Validate(doc); err != nil {
		return msg, fmt.Errorf("invalid message: %w", err)
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("invalid message: %w", err)
	}
	return msg, nil
}
