// Package wire defines the chat stream envelope and its two encodings.
//
// One logical outbound message type crosses the streaming channel: a
// ChatStreamEnvelope carrying exactly one of three variants. The session
// and turn logic is identical in both encodings; only the codec selected
// at connection setup differs.
package wire

import "errors"

// Envelope is the single outbound wire message shape: a tagged union with
// exactly one populated variant. ConversationID 0 is the wire sentinel for
// "no conversation context", used on pre-validation errors.
type Envelope struct {
	ConversationID int64

	// StreamID is reserved for future multiplexing. Senders leave it empty.
	StreamID string

	// Sequence numbers are scoped to one turn and strictly increasing.
	// Zero means unset.
	Sequence uint64

	Chunk    *Chunk
	Complete *Complete
	Error    *StreamError
}

// Chunk is an incremental text fragment of an in-progress response.
type Chunk struct {
	Text string
}

// Complete carries the full concatenated response plus follow-up
// suggestions, terminating a turn.
type Complete struct {
	FullText    string
	Suggestions []string
}

// StreamError reports a failed turn or session with an HTTP-style code.
type StreamError struct {
	Code    int32
	Message string
}

// NewChunk builds a chunk envelope.
func NewChunk(conversationID int64, seq uint64, text string) *Envelope {
	return &Envelope{ConversationID: conversationID, Sequence: seq, Chunk: &Chunk{Text: text}}
}

// NewComplete builds a terminal complete envelope.
func NewComplete(conversationID int64, seq uint64, fullText string, suggestions []string) *Envelope {
	return &Envelope{
		ConversationID: conversationID,
		Sequence:       seq,
		Complete:       &Complete{FullText: fullText, Suggestions: suggestions},
	}
}

// NewError builds an error envelope.
func NewError(conversationID int64, code int32, message string) *Envelope {
	return &Envelope{ConversationID: conversationID, Error: &StreamError{Code: code, Message: message}}
}

// Codec turns envelopes into wire frames and inbound frames into typed
// requests. Implementations are fixed per connection at establishment.
type Codec interface {
	// Name identifies the encoding ("json" or "binary").
	Name() string
	// Binary reports whether frames must be sent as binary WebSocket messages.
	Binary() bool
	// Encode produces one wire frame for the envelope.
	Encode(env *Envelope) ([]byte, error)
	// Decode parses one wire frame back into an envelope.
	Decode(data []byte) (*Envelope, error)
}

// Codec failure conditions.
var (
	// ErrCodecUnavailable means the selected encoding cannot produce frames.
	// Fatal to the connection; never degrade to another encoding silently.
	ErrCodecUnavailable = errors.New("wire: codec unavailable")

	// ErrMalformedFrame means an inbound frame could not be decoded.
	// Per-message; the session survives.
	ErrMalformedFrame = errors.New("wire: malformed frame")
)

// TurnRequest is the inbound frame shape, shared by both endpoints.
// A frame carrying only AuthToken is a credential frame; otherwise
// Message is required.
type TurnRequest struct {
	Message        string `json:"message"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
	ReturnAudio    bool   `json:"return_audio,omitempty"`
	ContextType    string `json:"context_type,omitempty"`
	AuthToken      string `json:"auth_token,omitempty"`
}

// IsAuth reports whether the frame only supplies a credential.
func (r *TurnRequest) IsAuth() bool {
	return r.AuthToken != "" && r.Message == ""
}
