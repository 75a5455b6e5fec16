package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// hard cap on a single inbound frame. Chat text over the configured
	// message length is still read and answered with an error frame.
	maxMessageSize = 1 << 20
)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Session is one live connection. It is a broadcast.Member: Deliver only
// enqueues, the write pump owns every write to the socket.
type Session struct {
	ID        uuid.UUID
	Actor     domain.Actor
	BookingID uuid.UUID
	Group     string

	conn  *websocket.Conn
	send  chan []byte
	state atomic.Int32

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, actor domain.Actor, bookingID uuid.UUID, group string, buffer int) *Session {
	if buffer <= 0 {
		buffer = 32
	}
	s := &Session{
		ID:        uuid.New(),
		Actor:     actor,
		BookingID: bookingID,
		Group:     group,
		conn:      conn,
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) open() bool {
	return s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// Deliver never blocks. A full buffer or a session that is not open drops the payload.
func (s *Session) Deliver(payload []byte) bool {
	if s.State() != StateOpen {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Close is idempotent. The send buffer is left to the garbage collector so
// a concurrent Deliver can never hit a closed channel.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		// WriteControl and Close are safe alongside the write pump
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = s.conn.Close()
	})
}

// writePump drains the send buffer and keeps the peer alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Logger.Debug().Err(err).Str("session_id", s.ID.String()).Msg("ws write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump hands every inbound text frame to fn until the peer goes away and
// returns the error that ended the session. It leaves the session open: the
// caller leaves the group first and then closes.
func (s *Session) readPump(fn func(payload []byte)) error {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, payload, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}
		fn(payload)
	}
}

// closeReason is the log label for the error returned by readPump.
func closeReason(err error) string {
	switch {
	case err == nil:
		return "server"
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return "client"
	case websocket.IsUnexpectedCloseError(err):
		return "abnormal"
	default:
		return "error"
	}
}
