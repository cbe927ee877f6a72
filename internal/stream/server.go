// Package stream exposes a character over websocket: command text in, frame
// snapshots and runtime events out.
package stream

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexmotion/internal/bus"
	"github.com/normanking/cortexmotion/internal/character"
	"github.com/normanking/cortexmotion/internal/lipsync"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
)

var ErrUnknownMessage = errors.New("unknown message type")

// Inbound message types.
const (
	TypeText       = "text"
	TypeSpeak      = "speak"
	TypeStopSpeech = "stop_speech"
	TypeStopMotion = "stop_motion"
	TypeSnapshot   = "snapshot"
)

// Outbound message types.
const (
	TypeAck   = "ack"
	TypeFrame = "frame"
	TypeEvent = "event"
	TypeError = "error"
)

// Character is the part of the runtime the transport drives.
type Character interface {
	HandleText(text string) string
	Speak(text string) *lipsync.Utterance
	StopLipSync() bool
	StopMotion(name string) bool
	Snapshot() character.Snapshot
}

// Message is a client request.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
}

// Outbound is everything the server sends. Only the field matching Type is set.
type Outbound struct {
	Type  string              `json:"type"`
	Clean string              `json:"clean,omitempty"`
	OK    *bool               `json:"ok,omitempty"`
	Frame *character.Snapshot `json:"frame,omitempty"`
	Event *bus.Event          `json:"event,omitempty"`
	Error string              `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Server struct {
	char     Character
	bus      *bus.Bus
	subID    bus.SubscriptionID
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// New builds a server for char. With a non-nil bus every runtime event is
// forwarded to all clients.
func New(char Character, b *bus.Bus, log zerolog.Logger) *Server {
	s := &Server{
		char: char,
		bus:  b,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     log.With().Str("component", "stream").Logger(),
		clients: make(map[*client]struct{}),
	}
	if b != nil {
		s.subID = b.Subscribe("", s.forward)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !s.add(c) {
		conn.Close()
		return
	}
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("Client connected")

	go s.writePump(c)
	s.readPump(c)

	s.remove(c)
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("Client disconnected")
}

func (s *Server) readPump(c *client) {
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
		s.sendTo(c, s.handle(msg))
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.log.Debug().Err(err).Msg("WebSocket write error")
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handle(msg Message) Outbound {
	switch msg.Type {
	case TypeText:
		return Outbound{Type: TypeAck, Clean: s.char.HandleText(msg.Text)}
	case TypeSpeak:
		s.char.Speak(msg.Text)
		return Outbound{Type: TypeAck, Clean: msg.Text}
	case TypeStopSpeech:
		ok := s.char.StopLipSync()
		return Outbound{Type: TypeAck, OK: &ok}
	case TypeStopMotion:
		ok := s.char.StopMotion(msg.Name)
		return Outbound{Type: TypeAck, OK: &ok}
	case TypeSnapshot:
		snap := s.char.Snapshot()
		return Outbound{Type: TypeFrame, Frame: &snap}
	}
	return Outbound{Type: TypeError, Error: ErrUnknownMessage.Error() + ": " + msg.Type}
}

// BroadcastSnapshot sends the character's current frame to every client.
func (s *Server) BroadcastSnapshot() {
	if s.Clients() == 0 {
		return
	}
	snap := s.char.Snapshot()
	s.Broadcast(Outbound{Type: TypeFrame, Frame: &snap})
}

func (s *Server) forward(e bus.Event) {
	s.Broadcast(Outbound{Type: TypeEvent, Event: &e})
}

// Broadcast queues msg for every client. Slow clients miss messages rather than block the caller.
func (s *Server) Broadcast(msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn().Err(err).Str("type", msg.Type).Msg("Failed to encode message")
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.log.Debug().Str("type", msg.Type).Msg("Client queue full, message dropped")
		}
	}
}

func (s *Server) sendTo(c *client, msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn().Err(err).Str("type", msg.Type).Msg("Failed to encode message")
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		s.log.Debug().Str("type", msg.Type).Msg("Client queue full, reply dropped")
	}
}

func (s *Server) add(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close stops forwarding events and disconnects every client.
func (s *Server) Close() {
	if s.bus != nil {
		_ = s.bus.Unsubscribe(s.subID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
