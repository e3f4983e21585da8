package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/chat"
	"github.com/aaelfe/me-machine/internal/domain"
	"github.com/aaelfe/me-machine/internal/identity"
	"github.com/aaelfe/me-machine/internal/wire"
)

// State is the session lifecycle position. Transitions only move forward
// through a turn and back to StateReady; StateClosed is terminal.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateReady
	StateProcessing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is one live connection: exclusively owned transport, fixed
// encoding, and a monotonic per-turn sequence managed by the
// orchestrator. Exactly one turn is in flight at a time.
type Session struct {
	id        string
	conn      *Conn
	codec     wire.Codec
	exchanger identity.Exchanger
	orch      *chat.Orchestrator
	log       *zap.Logger

	readTimeout  time.Duration
	pingInterval time.Duration

	state  State
	userID string
}

func newSession(conn *Conn, codec wire.Codec, exchanger identity.Exchanger, orch *chat.Orchestrator, log *zap.Logger, readTimeout, pingInterval time.Duration) *Session {
	id := uuid.New().String()
	return &Session{
		id:        id,
		conn:      conn,
		codec:     codec,
		exchanger: exchanger,
		orch:      orch,
		log:       log.With(zap.String("session_id", id), zap.String("codec", codec.Name())),

		readTimeout:  readTimeout,
		pingInterval: pingInterval,

		state: StateConnecting,
	}
}

// Emit encodes one envelope and writes it as a frame. Implements
// chat.Emitter for the orchestrator.
func (s *Session) Emit(env *wire.Envelope) error {
	data, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	messageType := websocket.TextMessage
	if s.codec.Binary() {
		messageType = websocket.BinaryMessage
	}
	return s.conn.WriteFrame(messageType, data)
}

// run drives the session to completion. It returns when the connection
// is gone or a fatal protocol error occurred; the caller closes up.
func (s *Session) run(ctx context.Context, credential string) {
	defer func() { s.state = StateClosed }()

	s.state = StateAuthenticating

	s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go s.pingLoop(stopPing)

	// Credential priority: query parameter, header, then the first
	// frame's payload. The first frame may carry both a credential and a
	// turn request; the turn is processed after auth succeeds.
	var pending *wire.TurnRequest
	if credential == "" {
		req, err := s.readRequest()
		if err != nil {
			s.log.Debug("connection closed before auth", zap.Error(err))
			return
		}
		if req == nil || req.AuthToken == "" {
			s.authFailure("missing credentials")
			return
		}
		credential = req.AuthToken
		if req.Message != "" {
			pending = req
		}
	}

	userID, err := s.exchanger.Exchange(ctx, credential)
	if err != nil {
		s.log.Info("authentication failed", zap.Error(err))
		s.authFailure("authentication failed")
		return
	}
	s.userID = userID
	s.state = StateReady
	s.log.Info("session authenticated", zap.String("user_id", userID))

	if pending != nil {
		if !s.processTurn(ctx, pending) {
			return
		}
	}

	for {
		req, err := s.readRequest()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Info("connection error", zap.Error(err))
			}
			return
		}
		if req == nil {
			// Malformed frame: per-message failure, session stays Ready.
			if !s.sendError(0, http.StatusBadRequest, "invalid message format") {
				return
			}
			continue
		}
		if req.IsAuth() {
			// Already authenticated; a bare credential frame is a no-op.
			continue
		}
		if !s.processTurn(ctx, req) {
			return
		}
	}
}

// readRequest reads one frame and decodes it. A nil request with nil
// error means the frame was malformed (recoverable); an error means the
// transport is gone.
func (s *Session) readRequest() (*wire.TurnRequest, error) {
	s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	req, err := wire.DecodeRequest(data)
	if err != nil {
		return nil, nil
	}
	return req, nil
}

// processTurn runs one turn and reports whether the session can continue.
func (s *Session) processTurn(ctx context.Context, req *wire.TurnRequest) bool {
	s.state = StateProcessing
	defer func() {
		if s.state == StateProcessing {
			s.state = StateReady
		}
	}()

	turn := chat.Turn{
		UserID:         s.userID,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		ContextType:    domain.ContextType(req.ContextType),
	}

	result, err := s.orch.Run(ctx, turn, chat.CompletionStreaming, s)
	if err != nil {
		return s.turnFailure(err)
	}

	s.log.Debug("turn completed", zap.Int64("conversation_id", result.ConversationID))
	return true
}

// turnFailure maps a turn error onto the wire and reports whether the
// session survives. Turn-scoped errors leave the session Ready; codec
// and transport failures are fatal.
func (s *Session) turnFailure(err error) bool {
	switch {
	case errors.Is(err, wire.ErrCodecUnavailable):
		s.log.Error("codec unavailable, closing", zap.Error(err))
		s.fatal("codec unavailable")
		return false
	case errors.Is(err, domain.ErrNotFound):
		// Untrusted caller-supplied conversation id: report without it.
		return s.sendError(0, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, context.DeadlineExceeded):
		s.log.Warn("turn timed out")
		return s.sendError(0, http.StatusInternalServerError, "turn timed out")
	default:
		s.log.Error("turn failed", zap.Error(err))
		return s.sendError(0, http.StatusInternalServerError, "failed to process message")
	}
}

// sendError emits one error envelope and reports whether the session can
// continue. An encode failure in binary mode is fatal.
func (s *Session) sendError(conversationID int64, code int32, message string) bool {
	err := s.Emit(wire.NewError(conversationID, code, message))
	if err == nil {
		return true
	}
	if errors.Is(err, wire.ErrCodecUnavailable) {
		s.fatal("codec unavailable")
	} else {
		s.log.Debug("failed to send error envelope", zap.Error(err))
		s.conn.Close()
	}
	s.state = StateClosed
	return false
}

// authFailure reports a failed authentication: one error envelope where
// the encoding allows it, then a policy-violation close. No retry.
func (s *Session) authFailure(reason string) {
	if !s.codec.Binary() {
		if data, err := s.codec.Encode(wire.NewError(0, http.StatusUnauthorized, reason)); err == nil {
			s.conn.WriteFrame(websocket.TextMessage, data)
		}
	}
	s.conn.CloseWith(websocket.ClosePolicyViolation, reason)
	s.state = StateClosed
}

// fatal closes the connection with an internal-error close code.
func (s *Session) fatal(reason string) {
	if s.codec.Binary() {
		// Distinguished signal for clients expecting binary frames.
		s.conn.WriteFrame(websocket.BinaryMessage, []byte{})
	}
	s.conn.CloseWith(websocket.CloseInternalServerErr, reason)
}

func (s *Session) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.conn.WritePing(); err != nil {
				return
			}
		}
	}
}
