package wire

import (
	"encoding/json"
	"fmt"
)

// Frame type discriminants on the text endpoint.
const (
	TypeMessageChunk    = "message_chunk"
	TypeMessageComplete = "message_complete"
	TypeError           = "error"
)

// jsonEnvelope is the flattened text-endpoint frame. The discriminant in
// Type identifies which variant fields are populated.
type jsonEnvelope struct {
	Type           string   `json:"type"`
	Chunk          string   `json:"chunk,omitempty"`
	Message        string   `json:"message,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
	Error          string   `json:"error,omitempty"`
	Code           int32    `json:"code,omitempty"`
	ConversationID int64    `json:"conversation_id"`
	StreamID       string   `json:"stream_id,omitempty"`
	Sequence       uint64   `json:"sequence,omitempty"`
}

// JSONCodec encodes envelopes as UTF-8 JSON text frames.
type JSONCodec struct{}

// NewJSONCodec returns the text-endpoint codec.
func NewJSONCodec() *JSONCodec { return &JSONCodec{} }

func (c *JSONCodec) Name() string { return "json" }

func (c *JSONCodec) Binary() bool { return false }

// Encode flattens the populated variant into one JSON object.
func (c *JSONCodec) Encode(env *Envelope) ([]byte, error) {
	out := jsonEnvelope{
		ConversationID: env.ConversationID,
		StreamID:       env.StreamID,
		Sequence:       env.Sequence,
	}
	switch {
	case env.Chunk != nil:
		out.Type = TypeMessageChunk
		out.Chunk = env.Chunk.Text
	case env.Complete != nil:
		out.Type = TypeMessageComplete
		out.Message = env.Complete.FullText
		out.Suggestions = env.Complete.Suggestions
	case env.Error != nil:
		out.Type = TypeError
		out.Error = env.Error.Message
		out.Code = env.Error.Code
	default:
		return nil, fmt.Errorf("wire: envelope has no variant")
	}
	return json.Marshal(out)
}

// Decode parses a text frame by its type discriminant.
func (c *JSONCodec) Decode(data []byte) (*Envelope, error) {
	var in jsonEnvelope
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	env := &Envelope{
		ConversationID: in.ConversationID,
		StreamID:       in.StreamID,
		Sequence:       in.Sequence,
	}
	switch in.Type {
	case TypeMessageChunk:
		env.Chunk = &Chunk{Text: in.Chunk}
	case TypeMessageComplete:
		env.Complete = &Complete{FullText: in.Message, Suggestions: in.Suggestions}
	case TypeError:
		env.Error = &StreamError{Code: in.Code, Message: in.Error}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, in.Type)
	}
	return env, nil
}

// DecodeRequest parses an inbound frame (JSON text on both endpoints)
// into a TurnRequest. A frame with neither a message nor a credential is
// malformed.
func DecodeRequest(data []byte) (*TurnRequest, error) {
	var req TurnRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if req.Message == "" && req.AuthToken == "" {
		return nil, fmt.Errorf("%w: missing message", ErrMalformedFrame)
	}
	return &req, nil
}
