package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/chat"
	"github.com/aaelfe/me-machine/internal/config"
	"github.com/aaelfe/me-machine/internal/domain"
	"github.com/aaelfe/me-machine/internal/llm"
	"github.com/aaelfe/me-machine/internal/store"
	"github.com/aaelfe/me-machine/internal/wire"
)

type staticExchanger struct {
	users map[string]string
}

func (f *staticExchanger) Exchange(ctx context.Context, token string) (string, error) {
	if userID, ok := f.users[token]; ok {
		return userID, nil
	}
	return "", domain.ErrUnauthorized
}

type testEnv struct {
	server   *httptest.Server
	store    store.Store
	registry *Registry
}

func newTestEnv(t *testing.T, completer llm.Completer, binaryFrames bool) *testEnv {
	t.Helper()

	db, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		PingInterval:   time.Minute,
		WriteTimeout:   5 * time.Second,
		ReadTimeout:    5 * time.Second,
		MaxMessageSize: 65536,
		BinaryFrames:   binaryFrames,
	}

	orch := chat.New(db, completer, zap.NewNop(), time.Minute, 7)
	exchanger := &staticExchanger{users: map[string]string{"good-token": "u1"}}
	registry := NewRegistry()

	e := echo.New()
	srv := NewServer(cfg, exchanger, orch, registry, zap.NewNop())
	srv.RegisterRoutes(e)

	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: db, registry: registry}
}

func (env *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s failed: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

type jsonFrame struct {
	Type           string   `json:"type"`
	Chunk          string   `json:"chunk"`
	Message        string   `json:"message"`
	Suggestions    []string `json:"suggestions"`
	Error          string   `json:"error"`
	Code           int32    `json:"code"`
	ConversationID int64    `json:"conversation_id"`
	Sequence       uint64   `json:"sequence"`
}

func readFrame(t *testing.T, conn *websocket.Conn) jsonFrame {
	t.Helper()
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var frame jsonFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("frame is not JSON: %v (%s)", err, data)
	}
	return frame
}

// readTurn collects frames until the terminal one (complete or error).
func readTurn(t *testing.T, conn *websocket.Conn) (chunks []jsonFrame, terminal jsonFrame) {
	t.Helper()
	for i := 0; i < 100; i++ {
		frame := readFrame(t, conn)
		switch frame.Type {
		case wire.TypeMessageChunk:
			chunks = append(chunks, frame)
		case wire.TypeMessageComplete, wire.TypeError:
			return chunks, frame
		default:
			t.Fatalf("unexpected frame type %q", frame.Type)
		}
	}
	t.Fatal("no terminal frame")
	return nil, jsonFrame{}
}

func TestStreamingHappyPath(t *testing.T) {
	env := newTestEnv(t, &llm.Mock{Fragments: []string{"Hel", "lo ", "there"}}, true)
	conn := env.dial(t, "/api/v1/chat/ws?token=good-token")

	if err := conn.WriteJSON(map[string]interface{}{"message": "hi"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	chunks, terminal := readTurn(t, conn)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	var full string
	for i, ch := range chunks {
		if ch.Sequence != uint64(i+1) {
			t.Fatalf("chunk %d has sequence %d", i, ch.Sequence)
		}
		if ch.ConversationID == 0 {
			t.Fatal("chunk missing conversation id")
		}
		full += ch.Chunk
	}

	if terminal.Type != wire.TypeMessageComplete {
		t.Fatalf("expected complete, got %+v", terminal)
	}
	if terminal.Message != full {
		t.Fatalf("complete %q != chunk concatenation %q", terminal.Message, full)
	}
	if terminal.Sequence != uint64(len(chunks)+1) {
		t.Fatalf("terminal sequence %d does not continue the chunk run", terminal.Sequence)
	}
	if len(terminal.Suggestions) == 0 {
		t.Fatal("complete frame missing suggestions")
	}

	// Second turn on the same conversation keeps the session alive.
	if err := conn.WriteJSON(map[string]interface{}{
		"message":         "again",
		"conversation_id": terminal.ConversationID,
	}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	_, second := readTurn(t, conn)
	if second.Type != wire.TypeMessageComplete {
		t.Fatalf("second turn failed: %+v", second)
	}
	if second.ConversationID != terminal.ConversationID {
		t.Fatalf("conversation id changed across turns: %d vs %d", second.ConversationID, terminal.ConversationID)
	}
	// Per-turn sequence: the new turn restarts at 1.
	if second.Sequence == 0 || second.Sequence > terminal.Sequence {
		t.Fatalf("unexpected terminal sequence on second turn: %d", second.Sequence)
	}
}

func TestFirstFrameAuthWithPendingTurn(t *testing.T) {
	env := newTestEnv(t, &llm.Mock{Fragments: []string{"hi!"}}, true)
	conn := env.dial(t, "/api/v1/chat/ws")

	// No query credential: the first frame carries both the token and a
	// message, and the turn runs right after auth.
	if err := conn.WriteJSON(map[string]interface{}{
		"auth_token": "good-token",
		"message":    "first thing",
	}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	_, terminal := readTurn(t, conn)
	if terminal.Type != wire.TypeMessageComplete {
		t.Fatalf("pending turn did not complete: %+v", terminal)
	}
}

func TestAuthFailureCloses1008(t *testing.T) {
	env := newTestEnv(t, llm.NewMock(), true)
	conn := env.dial(t, "/api/v1/chat/ws?token=wrong")

	frame := readFrame(t, conn)
	if frame.Type != wire.TypeError || frame.Code != 401 {
		t.Fatalf("expected 401 error frame, got %+v", frame)
	}
	if frame.ConversationID != 0 {
		t.Fatalf("pre-auth error must carry the 0 sentinel, got %d", frame.ConversationID)
	}

	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected close 1008, got %v", err)
	}
}

func TestMissingCredentialCloses1008(t *testing.T) {
	env := newTestEnv(t, llm.NewMock(), true)
	conn := env.dial(t, "/api/v1/chat/ws")

	// First frame has a message but no credential.
	if err := conn.WriteJSON(map[string]interface{}{"message": "hi"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != wire.TypeError || frame.Code != 401 {
		t.Fatalf("expected 401 error frame, got %+v", frame)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected close 1008, got %v", err)
	}
}

func TestMalformedFrameIsRecoverable(t *testing.T) {
	env := newTestEnv(t, &llm.Mock{Fragments: []string{"ok"}}, true)
	conn := env.dial(t, "/api/v1/chat/ws?token=good-token")

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != wire.TypeError || frame.Code != 400 {
		t.Fatalf("expected 400 error frame, got %+v", frame)
	}
	if frame.ConversationID != 0 {
		t.Fatalf("malformed-frame error must carry the 0 sentinel, got %d", frame.ConversationID)
	}

	// The session survives and processes the next turn.
	if err := conn.WriteJSON(map[string]interface{}{"message": "hi"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	_, terminal := readTurn(t, conn)
	if terminal.Type != wire.TypeMessageComplete {
		t.Fatalf("session did not recover: %+v", terminal)
	}
}

func TestForeignConversationError(t *testing.T) {
	env := newTestEnv(t, llm.NewMock(), true)

	// Conversation owned by somebody else.
	foreign, err := env.store.CreateConversation(context.Background(), "other-user")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	conn := env.dial(t, "/api/v1/chat/ws?token=good-token")
	if err := conn.WriteJSON(map[string]interface{}{
		"message":         "hi",
		"conversation_id": foreign.ID,
	}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != wire.TypeError || frame.Code != 404 {
		t.Fatalf("expected 404 error frame, got %+v", frame)
	}
	// The id is untrusted input and must not be echoed.
	if frame.ConversationID != 0 {
		t.Fatalf("error must not echo the foreign id, got %d", frame.ConversationID)
	}

	// Turn-scoped failure: session stays usable.
	if err := conn.WriteJSON(map[string]interface{}{"message": "hi"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	_, terminal := readTurn(t, conn)
	if terminal.Type != wire.TypeMessageComplete {
		t.Fatalf("session did not survive the 404: %+v", terminal)
	}
}

func TestBinaryEndpoint(t *testing.T) {
	env := newTestEnv(t, &llm.Mock{Fragments: []string{"bin", "ary"}}, true)
	conn := env.dial(t, "/api/v1/chat/ws-bin?token=good-token")

	// Requests stay JSON text in both modes.
	if err := conn.WriteJSON(map[string]interface{}{"message": "hi"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	codec := wire.NewBinaryCodec()
	var chunks []string
	for i := 0; i < 100; i++ {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}
		if messageType != websocket.BinaryMessage {
			t.Fatalf("expected binary frame, got type %d", messageType)
		}
		decoded, err := codec.Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if decoded.Chunk != nil {
			chunks = append(chunks, decoded.Chunk.Text)
			continue
		}
		if decoded.Complete == nil {
			t.Fatalf("unexpected envelope: %+v", decoded)
		}
		if decoded.Complete.FullText != strings.Join(chunks, "") {
			t.Fatalf("complete %q != chunks %v", decoded.Complete.FullText, chunks)
		}
		return
	}
	t.Fatal("no terminal envelope")
}

func TestBinaryUnavailableCloses1011(t *testing.T) {
	env := newTestEnv(t, llm.NewMock(), false)
	conn := env.dial(t, "/api/v1/chat/ws-bin?token=good-token")

	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected the empty binary frame first, got %v", err)
	}
	if messageType != websocket.BinaryMessage || len(data) != 0 {
		t.Fatalf("expected one empty binary frame, got type %d with %d bytes", messageType, len(data))
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseInternalServerErr) {
		t.Fatalf("expected close 1011, got %v", err)
	}
}

func TestJSONEndpointUnaffectedByBinaryToggle(t *testing.T) {
	env := newTestEnv(t, &llm.Mock{Fragments: []string{"still works"}}, false)
	conn := env.dial(t, "/api/v1/chat/ws?token=good-token")

	if err := conn.WriteJSON(map[string]interface{}{"message": "hi"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	_, terminal := readTurn(t, conn)
	if terminal.Type != wire.TypeMessageComplete {
		t.Fatalf("JSON endpoint broken by binary toggle: %+v", terminal)
	}
}

func TestRegistryTracksSessions(t *testing.T) {
	env := newTestEnv(t, llm.NewMock(), true)

	if env.registry.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", env.registry.Count())
	}

	conn := env.dial(t, "/api/v1/chat/ws?token=good-token")

	// Session registration happens during the upgrade handler; poll
	// briefly instead of assuming scheduling order.
	deadline := time.Now().Add(2 * time.Second)
	for env.registry.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("session never registered, count=%d", env.registry.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for env.registry.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session never deregistered, count=%d", env.registry.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
