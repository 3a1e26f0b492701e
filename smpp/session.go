package smpp

import (
	"sync"

	"github.com/oxymeal/smpp-server/smpp/external"
)

// Mode is the bind state of a single connection.
type Mode int

const (
	ModeUnbound Mode = iota
	ModeReceiver
	ModeTransmitter
	ModeTransceiver
)

func (m Mode) CanTransmit() bool {
	return m == ModeTransmitter || m == ModeTransceiver
}

func (m Mode) CanReceive() bool {
	return m == ModeReceiver || m == ModeTransceiver
}

func (m Mode) String() string {
	switch m {
	case ModeReceiver:
		return "receiver"
	case ModeTransmitter:
		return "transmitter"
	case ModeTransceiver:
		return "transceiver"
	}
	return "unbound"
}

// Session groups every live connection bound with the same system_id and
// owns the dispatcher processing that user's submissions. A session is
// created by the first bind and dies with its last connection.
type Session struct {
	SystemID   string
	Password   string
	dispatcher *Dispatcher

	conns map[*Connection]struct{}
}

// registry tracks the sessions of one worker process.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Session)}
}

// bind attaches the connection to the session of systemID, creating the
// session as needed. A connection bound elsewhere is unbound first.
func (r *registry) bind(c *Connection, mode Mode, systemID, password string, provider external.Provider) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.detach(c)

	s, ok := r.sessions[systemID]
	if !ok {
		s = &Session{
			SystemID:   systemID,
			Password:   password,
			dispatcher: NewDispatcher(systemID, password, provider),
			conns:      make(map[*Connection]struct{}),
		}
		r.sessions[systemID] = s
	}
	s.conns[c] = struct{}{}

	c.mode = mode
	c.session = s
	return s
}

// unbind detaches the connection from its session, if any. The session is
// dropped together with its last connection.
func (r *registry) unbind(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detach(c)
	c.mode = ModeUnbound
}

func (r *registry) detach(c *Connection) {
	s := c.session
	if s == nil {
		return
	}
	delete(s.conns, c)
	if len(s.conns) == 0 {
		delete(r.sessions, s.SystemID)
	}
	c.session = nil
}

// receivers returns a snapshot of the connections of systemID that are
// bound in a receiving mode.
func (r *registry) receivers(systemID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[systemID]
	if !ok {
		return nil
	}
	out := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		if c.mode.CanReceive() {
			out = append(out, c)
		}
	}
	return out
}
