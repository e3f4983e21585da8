package ws

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/chat"
	"github.com/aaelfe/me-machine/internal/config"
	"github.com/aaelfe/me-machine/internal/identity"
	"github.com/aaelfe/me-machine/internal/wire"
)

// Server handles the two streaming chat endpoints. Both run the same
// session state machine; only the envelope codec differs.
type Server struct {
	cfg       *config.Config
	log       *zap.Logger
	exchanger identity.Exchanger
	orch      *chat.Orchestrator
	registry  *Registry
	upgrader  websocket.Upgrader

	json   wire.Codec
	binary wire.Codec
}

// NewServer creates a WebSocket server. When binary frames are disabled
// the binary endpoint refuses connections with one empty binary frame
// and close code 1011 instead of silently degrading to JSON.
func NewServer(cfg *config.Config, exchanger identity.Exchanger, orch *chat.Orchestrator, registry *Registry, log *zap.Logger) *Server {
	var binary wire.Codec = wire.NewBinaryCodec()
	if !cfg.BinaryFrames {
		binary = wire.NewUnavailable()
	}
	return &Server{
		cfg:       cfg,
		log:       log,
		exchanger: exchanger,
		orch:      orch,
		registry:  registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Mirrors the permissive REST CORS policy.
				return true
			},
		},
		json:   wire.NewJSONCodec(),
		binary: binary,
	}
}

// RegisterRoutes registers the streaming endpoints with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/chat/ws", s.HandleText)
	e.GET("/api/v1/chat/ws-bin", s.HandleBinary)
}

// HandleText serves the JSON streaming endpoint.
func (s *Server) HandleText(c echo.Context) error {
	return s.handle(c, s.json)
}

// HandleBinary serves the binary streaming endpoint.
func (s *Server) HandleBinary(c echo.Context) error {
	if _, unavailable := s.binary.(*wire.Unavailable); unavailable {
		conn, err := s.upgrade(c)
		if err != nil {
			return err
		}
		conn.WriteFrame(websocket.BinaryMessage, []byte{})
		conn.CloseWith(websocket.CloseInternalServerErr, "binary codec unavailable")
		return nil
	}
	return s.handle(c, s.binary)
}

func (s *Server) handle(c echo.Context, codec wire.Codec) error {
	conn, err := s.upgrade(c)
	if err != nil {
		return err
	}

	sess := newSession(conn, codec, s.exchanger, s.orch, s.log, s.cfg.ReadTimeout, s.cfg.PingInterval)
	s.registry.Add(sess)
	defer func() {
		s.registry.Remove(sess)
		conn.Close()
	}()

	sess.run(c.Request().Context(), credentialFrom(c.Request()))
	return nil
}

func (s *Server) upgrade(c echo.Context) (*Conn, error) {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return nil, err
	}
	conn := NewConn(ws, s.cfg.WriteTimeout)
	conn.SetReadLimit(s.cfg.MaxMessageSize)
	return conn, nil
}

// credentialFrom extracts the bearer credential from the upgrade request:
// query parameter first, then the Authorization header. An empty return
// defers to the first inbound frame.
func credentialFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
