package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf field numbers of the ChatStreamEnvelope schema. The oneof
// payload occupies fields 4-6; exactly one is present per envelope.
const (
	fieldConversationID = 1
	fieldStreamID       = 2
	fieldSequence       = 3
	fieldChunk          = 4
	fieldComplete       = 5
	fieldError          = 6

	chunkText = 1

	completeFullText    = 1
	completeSuggestions = 2

	errorCode    = 1
	errorMessage = 2
)

// BinaryCodec encodes envelopes in protobuf wire format for the binary
// endpoint. Inbound request frames remain JSON text in both modes, so
// only envelopes get the binary treatment.
type BinaryCodec struct{}

// NewBinaryCodec returns the binary-endpoint codec.
func NewBinaryCodec() *BinaryCodec { return &BinaryCodec{} }

func (c *BinaryCodec) Name() string { return "binary" }

func (c *BinaryCodec) Binary() bool { return true }

// Encode serializes the envelope. Zero-valued scalars are omitted per
// proto3 semantics; the populated variant is always emitted, even empty.
func (c *BinaryCodec) Encode(env *Envelope) ([]byte, error) {
	var b []byte
	if env.ConversationID != 0 {
		b = protowire.AppendTag(b, fieldConversationID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(env.ConversationID))
	}
	if env.StreamID != "" {
		b = protowire.AppendTag(b, fieldStreamID, protowire.BytesType)
		b = protowire.AppendString(b, env.StreamID)
	}
	if env.Sequence != 0 {
		b = protowire.AppendTag(b, fieldSequence, protowire.VarintType)
		b = protowire.AppendVarint(b, env.Sequence)
	}
	switch {
	case env.Chunk != nil:
		b = protowire.AppendTag(b, fieldChunk, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeChunk(env.Chunk))
	case env.Complete != nil:
		b = protowire.AppendTag(b, fieldComplete, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeComplete(env.Complete))
	case env.Error != nil:
		b = protowire.AppendTag(b, fieldError, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeError(env.Error))
	default:
		return nil, fmt.Errorf("wire: envelope has no variant")
	}
	return b, nil
}

func encodeChunk(ch *Chunk) []byte {
	var b []byte
	if ch.Text != "" {
		b = protowire.AppendTag(b, chunkText, protowire.BytesType)
		b = protowire.AppendString(b, ch.Text)
	}
	return b
}

func encodeComplete(cp *Complete) []byte {
	var b []byte
	if cp.FullText != "" {
		b = protowire.AppendTag(b, completeFullText, protowire.BytesType)
		b = protowire.AppendString(b, cp.FullText)
	}
	for _, s := range cp.Suggestions {
		b = protowire.AppendTag(b, completeSuggestions, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b
}

func encodeError(se *StreamError) []byte {
	var b []byte
	if se.Code != 0 {
		b = protowire.AppendTag(b, errorCode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(se.Code)))
	}
	if se.Message != "" {
		b = protowire.AppendTag(b, errorMessage, protowire.BytesType)
		b = protowire.AppendString(b, se.Message)
	}
	return b
}

// Decode parses a binary envelope frame. Unknown fields are skipped.
func (c *BinaryCodec) Decode(data []byte) (*Envelope, error) {
	env := &Envelope{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: bad tag", ErrMalformedFrame)
		}
		data = data[n:]

		switch num {
		case fieldConversationID:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: conversation_id", ErrMalformedFrame)
			}
			env.ConversationID = int64(v)
			data = data[n:]
		case fieldStreamID:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: stream_id", ErrMalformedFrame)
			}
			env.StreamID = v
			data = data[n:]
		case fieldSequence:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: sequence", ErrMalformedFrame)
			}
			env.Sequence = v
			data = data[n:]
		case fieldChunk:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: chunk", ErrMalformedFrame)
			}
			ch, err := decodeChunk(v)
			if err != nil {
				return nil, err
			}
			env.Chunk = ch
			data = data[n:]
		case fieldComplete:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: complete", ErrMalformedFrame)
			}
			cp, err := decodeComplete(v)
			if err != nil {
				return nil, err
			}
			env.Complete = cp
			data = data[n:]
		case fieldError:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: error", ErrMalformedFrame)
			}
			se, err := decodeError(v)
			if err != nil {
				return nil, err
			}
			env.Error = se
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d", ErrMalformedFrame, num)
			}
			data = data[n:]
		}
	}
	return env, nil
}

func decodeChunk(data []byte) (*Chunk, error) {
	ch := &Chunk{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: chunk tag", ErrMalformedFrame)
		}
		data = data[n:]
		if num == chunkText && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: chunk text", ErrMalformedFrame)
			}
			ch.Text = v
			data = data[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, fmt.Errorf("%w: chunk field %d", ErrMalformedFrame, num)
		}
		data = data[n:]
	}
	return ch, nil
}

func decodeComplete(data []byte) (*Complete, error) {
	cp := &Complete{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: complete tag", ErrMalformedFrame)
		}
		data = data[n:]
		switch {
		case num == completeFullText && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: full_text", ErrMalformedFrame)
			}
			cp.FullText = v
			data = data[n:]
		case num == completeSuggestions && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: suggestion", ErrMalformedFrame)
			}
			cp.Suggestions = append(cp.Suggestions, v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: complete field %d", ErrMalformedFrame, num)
			}
			data = data[n:]
		}
	}
	return cp, nil
}

func decodeError(data []byte) (*StreamError, error) {
	se := &StreamError{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: error tag", ErrMalformedFrame)
		}
		data = data[n:]
		switch {
		case num == errorCode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: error code", ErrMalformedFrame)
			}
			se.Code = int32(v)
			data = data[n:]
		case num == errorMessage && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: error message", ErrMalformedFrame)
			}
			se.Message = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: error field %d", ErrMalformedFrame, num)
			}
			data = data[n:]
		}
	}
	return se, nil
}

// Unavailable is the binary endpoint's codec when binary frames are
// disabled. Every operation fails with ErrCodecUnavailable; the session
// treats this as fatal and closes rather than degrading to JSON.
type Unavailable struct{}

// NewUnavailable returns a codec whose every operation fails.
func NewUnavailable() *Unavailable { return &Unavailable{} }

func (u *Unavailable) Name() string { return "binary" }

func (u *Unavailable) Binary() bool { return true }

func (u *Unavailable) Encode(*Envelope) ([]byte, error) { return nil, ErrCodecUnavailable }

func (u *Unavailable) Decode([]byte) (*Envelope, error) { return nil, ErrCodecUnavailable }
