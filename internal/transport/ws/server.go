package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"econcraft.ai/internal/protocol"
	"econcraft.ai/internal/sim/tuning"
	"econcraft.ai/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	readIdleTimeout  = 60 * time.Second
	writeTimeout     = 5 * time.Second
	worldWait        = 10 * time.Second

	stateQueue  = 4
	resultQueue = 64
)

type Server struct {
	world  *world.World
	log    *log.Logger
	limits tuning.RateLimits

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*websocket.Conn
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}
	return &Server{
		world:  w,
		log:    logger,
		limits: w.Tuning().RateLimits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]*websocket.Conn{},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := make(chan []byte, stateQueue)
		results := make(chan []byte, resultQueue)
		playerID := s.handshake(conn, out, results)
		if playerID == "" {
			return
		}
		s.bind(playerID, conn)

		done := make(chan struct{})
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			s.writeLoop(conn, out, results, done)
		}()

		s.readLoop(conn, playerID, results)
		close(done)
		<-writerDone

		if s.unbind(playerID, conn) {
			select {
			case s.world.Leave() <- world.LeaveRequest{PlayerID: playerID, Out: out, Results: results}:
			case <-time.After(worldWait):
				s.log.Printf("leave %s: world not accepting", playerID)
			}
		}
	}
}

// bind makes conn the live session for playerID. A session resumed on a new
// connection closes the old one.
func (s *Server) bind(playerID string, conn *websocket.Conn) {
	s.mu.Lock()
	old := s.sessions[playerID]
	s.sessions[playerID] = conn
	s.mu.Unlock()
	if old != nil && old != conn {
		_ = old.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session resumed elsewhere"),
			time.Now().Add(time.Second))
		_ = old.Close()
	}
}

// unbind reports whether conn was still the live session.
func (s *Server) unbind(playerID string, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[playerID] != conn {
		return false
	}
	delete(s.sessions, playerID)
	return true
}

func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) writeLoop(conn *websocket.Conn, out, results <-chan []byte, done <-chan struct{}) {
	write := func(b []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = conn.Close()
			return false
		}
		return true
	}
	for {
		// Results first so a RESULT is never overtaken by a later STATE.
		select {
		case b := <-results:
			if !write(b) {
				return
			}
			continue
		default:
		}
		select {
		case <-done:
			return
		case b := <-results:
			if !write(b) {
				return
			}
		case b := <-out:
			if !write(b) {
				return
			}
		}
	}
}

func (s *Server) readLoop(conn *websocket.Conn, playerID string, results chan<- []byte) {
	limiter := newLimiter(s.limits)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeCmd {
			s.reject(results, "", protocol.ErrProtoBadRequest, "expected CMD")
			continue
		}
		if base.ProtocolVersion != protocol.Version {
			s.reject(results, "", protocol.ErrProtoBadRequest, "bad protocol_version")
			continue
		}
		cmd, err := protocol.DecodeCmd(msg)
		if err != nil {
			s.reject(results, cmd.ReqID, protocol.ErrProtoBadRequest, err.Error())
			continue
		}
		if limiter != nil && !limiter.Allow() {
			s.reject(results, cmd.ReqID, protocol.ErrRateLimit, "too many commands")
			continue
		}
		select {
		case s.world.Inbox() <- world.CommandEnvelope{PlayerID: playerID, Cmd: cmd}:
		default:
			s.reject(results, cmd.ReqID, protocol.ErrWorldBusy, "command queue full")
		}
	}
}

func newLimiter(l tuning.RateLimits) *rate.Limiter {
	if l.CommandsPerSecond <= 0 {
		return nil
	}
	burst := l.CommandBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(l.CommandsPerSecond), burst)
}

// reject answers a command the world never saw. The tick is the world's
// current tick at rejection time.
func (s *Server) reject(results chan<- []byte, reqID, code, msg string) {
	b, err := json.Marshal(protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Tick:            s.world.CurrentTick(),
		OK:              false,
		Code:            code,
		Message:         msg,
	})
	if err != nil {
		return
	}
	select {
	case results <- b:
	default:
	}
}

func (s *Server) handshake(conn *websocket.Conn, out, results chan []byte) string {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "bad HELLO")
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return ""
	}

	resumeToken := ""
	if hello.Auth != nil {
		resumeToken = strings.TrimSpace(hello.Auth.ResumeToken)
	}

	respCh := make(chan world.JoinResponse, 1)
	var send func() bool
	if resumeToken != "" {
		send = func() bool {
			select {
			case s.world.Attach() <- world.AttachRequest{ResumeToken: resumeToken, Out: out, Results: results, Resp: respCh}:
				return true
			case <-time.After(worldWait):
				return false
			}
		}
	} else {
		name := strings.TrimSpace(hello.PlayerName)
		send = func() bool {
			select {
			case s.world.Join() <- world.JoinRequest{Name: name, Out: out, Results: results, Resp: respCh}:
				return true
			case <-time.After(worldWait):
				return false
			}
		}
	}
	if !send() {
		closeWith(conn, "world busy")
		return ""
	}

	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-time.After(worldWait):
		closeWith(conn, "world busy")
		return ""
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return ""
	}
	if resp.Welcome.PlayerID == "" {
		closeWith(conn, resp.Welcome.Code)
		return ""
	}
	for _, c := range resp.Catalogs {
		if err := writeJSON(conn, c); err != nil {
			return ""
		}
	}
	if resp.Welcome.Resumed {
		s.log.Printf("resumed %s", resp.Welcome.PlayerID)
	}
	return resp.Welcome.PlayerID
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
