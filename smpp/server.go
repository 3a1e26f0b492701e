// Package smpp implements the worker side of the SMPP server: the
// connection handler, the session registry, the per-user message
// dispatcher and the cross-worker receipt bus.
package smpp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/oxymeal/smpp-server/smpp/external"
	"github.com/oxymeal/smpp-server/smpp/pdu"
)

// Server is one SMPP worker. It accepts client connections on a TCP
// address or a unix socket, speaks the SMPP v3.4 subset and routes
// delivery receipts either locally or across workers over the receipt
// bus.
type Server struct {
	// Addr is the TCP listen address. Ignored when UnixSocket is set.
	Addr string
	// UnixSocket, when set, makes the server listen on a unix socket
	// instead of TCP. Used by workers behind the master.
	UnixSocket string
	// Provider authenticates binds and carries messages onward. A nil
	// provider accepts everyone and swallows messages.
	Provider external.Provider

	// PublishURL is this worker's receipt bus endpoint. Empty disables
	// publishing: receipts are delivered locally.
	PublishURL string
	// SubscribeURLs lists the bus endpoints of all workers, this one
	// included.
	SubscribeURLs []string
	// Publisher overrides the TCP bus publisher, for broker-backed
	// deployments. When nil and PublishURL is set, a TCP publisher is
	// started on PublishURL.
	Publisher Publisher

	registry *registry

	ctx    context.Context
	cancel context.CancelFunc
	ln     net.Listener
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[*Connection]struct{}
}

// Start binds the listener and the bus endpoints and begins serving in
// the background.
func (s *Server) Start() error {
	s.registry = newRegistry()
	s.conns = make(map[*Connection]struct{})
	s.ctx, s.cancel = context.WithCancel(context.Background())

	var err error
	if s.UnixSocket != "" {
		s.ln, err = net.Listen("unix", s.UnixSocket)
	} else {
		s.ln, err = net.Listen("tcp", s.Addr)
	}
	if err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}

	if s.Publisher == nil && s.PublishURL != "" {
		s.Publisher, err = NewBusPublisher(s.PublishURL)
		if err != nil {
			s.ln.Close()
			return err
		}
	}

	for _, url := range s.SubscribeURLs {
		url := url
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			subscribeBus(s.ctx, url, s.HandleBusPayload)
		}()
	}

	log.WithFields(log.Fields{
		"addr": s.ln.Addr().String(),
	}).Info("SMPP server listening")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// ListenAddr reports the bound listener address, for callers that start
// the server on port zero.
func (s *Server) ListenAddr() net.Addr {
	return s.ln.Addr()
}

// Stop closes the listener, every live connection and the bus, then waits
// for the handlers to drain.
func (s *Server) Stop() {
	s.cancel()
	s.ln.Close()

	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.WithFields(log.Fields{"error": err}).Warn("Closing bus publisher")
		}
	}

	s.mu.Lock()
	for c := range s.conns {
		c.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		c := &Connection{
			server: s,
			conn:   conn,
			log: log.WithFields(log.Fields{
				"conn_id": uuid.New().String(),
				"peer":    conn.RemoteAddr().String(),
			}),
		}

		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()
		metricOpenConnections.Inc()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.serve(s.ctx)

			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
			metricOpenConnections.Dec()
		}()
	}
}

// HandleBusPayload delivers one receipt bus payload to the local
// receivers of its target system_id. It is the handler side of both bus
// transports.
func (s *Server) HandleBusPayload(payload []byte) {
	systemID, frame, err := decodeBusPayload(payload)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Discarding malformed bus payload")
		return
	}
	_, p, err := pdu.Decode(frame)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Discarding undecodable bus PDU")
		return
	}
	dsm, ok := p.(*pdu.DeliverSM)
	if !ok {
		log.WithFields(log.Fields{"command": p.CommandID()}).Error("Unexpected PDU on the receipt bus")
		return
	}
	s.deliverLocal(systemID, dsm)
}

// deliverLocal fans a deliver_sm out to every local receiver connection
// bound with systemID, each with its own sequence number.
func (s *Server) deliverLocal(systemID string, dsm *pdu.DeliverSM) {
	for _, c := range s.registry.receivers(systemID) {
		if err := c.sendNewSeq(dsm); err != nil {
			c.log.WithFields(log.Fields{"error": err}).Error("Failed to deliver receipt")
		}
	}
}

// routeReceipt hands a synthesized receipt to the bus when publishing is
// configured, or to the local receivers otherwise. When the bus is on,
// local delivery happens through this worker's own subscription, exactly
// once, like on every other worker.
func (s *Server) routeReceipt(systemID string, dsm *pdu.DeliverSM) error {
	if s.Publisher == nil {
		s.deliverLocal(systemID, dsm)
		return nil
	}
	frame, err := pdu.Encode(dsm, 0, pdu.StatusOK)
	if err != nil {
		return fmt.Errorf("encoding receipt for the bus: %w", err)
	}
	return s.Publisher.Publish(encodeBusPayload(systemID, frame))
}

// Connection is one client connection with its bind state.
type Connection struct {
	server *Server
	conn   net.Conn
	log    *log.Entry

	mode    Mode
	session *Session

	// lastSeq tracks the highest sequence number seen from the peer;
	// server-originated PDUs use lastSeq+1.
	lastSeq uint32

	// wmu serializes writes: dispatcher responses against receipt
	// fan-out from other goroutines.
	wmu sync.Mutex
}

func (c *Connection) serve(ctx context.Context) {
	c.log.Info("New connection")
	defer func() {
		if c.mode != ModeUnbound {
			metricBoundConnections.Dec()
		}
		c.server.registry.unbind(c)
		c.conn.Close()
		c.log.Info("Connection closed")
	}()

	for {
		frame, err := c.readFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				c.log.WithFields(log.Fields{"error": err}).Error("Dropping connection")
			}
			return
		}

		h, p, err := pdu.Decode(frame)
		if err != nil {
			c.log.WithFields(log.Fields{"error": err}).Error("Malformed PDU")
			_ = c.Send(&pdu.GenericNack{}, 0, pdu.StatusUnknownErr)
			continue
		}

		c.observeSeq(h.Seq)
		metricPDUsReceived.WithLabelValues(h.ID.String()).Inc()
		c.handlePDU(ctx, h, p)
	}
}

// readFrame reads one length-prefixed PDU frame. A declared length
// outside [HeaderSize, MaxPDUSize] is unrecoverable: the stream position
// is lost, so the connection is dropped after a nack.
func (c *Connection) readFrame() ([]byte, error) {
	var lenb [4]byte
	if _, err := io.ReadFull(c.conn, lenb[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenb[:])
	if n < pdu.HeaderSize || n > pdu.MaxPDUSize {
		_ = c.Send(&pdu.GenericNack{}, 0, pdu.StatusUnknownErr)
		return nil, fmt.Errorf("declared PDU length %d is out of range", n)
	}

	frame := make([]byte, n)
	copy(frame, lenb[:])
	if _, err := io.ReadFull(c.conn, frame[4:]); err != nil {
		return nil, err
	}
	return frame, nil
}

func (c *Connection) handlePDU(ctx context.Context, h pdu.Header, p pdu.PDU) {
	switch p := p.(type) {
	case *pdu.EnquireLink:
		_ = c.Send(p.Resp(), h.Seq, pdu.StatusOK)

	case *pdu.BindReceiver:
		c.bind(ctx, h, &p.Bind, ModeReceiver, p.Resp())
	case *pdu.BindTransmitter:
		c.bind(ctx, h, &p.Bind, ModeTransmitter, p.Resp())
	case *pdu.BindTransceiver:
		c.bind(ctx, h, &p.Bind, ModeTransceiver, p.Resp())

	case *pdu.Unbind:
		if c.mode != ModeUnbound {
			metricBoundConnections.Dec()
		}
		c.server.registry.unbind(c)
		c.log.Info("Unbound")
		_ = c.Send(p.Resp(), h.Seq, pdu.StatusOK)

	default:
		if !c.mode.CanTransmit() {
			c.log.WithFields(log.Fields{
				"command": h.ID,
				"mode":    c.mode.String(),
			}).Error("Invalid bind status for command")
			_ = c.Send(&pdu.GenericNack{}, h.Seq, pdu.StatusInvBnd)
			return
		}
		c.session.dispatcher.Receive(ctx, h, p, c)
	}
}

// bind authenticates the peer and attaches the connection to a session.
// Failed authentication answers with the bind response itself, carrying
// ESME_RINVPASWD; the connection stays open and unbound.
func (c *Connection) bind(ctx context.Context, h pdu.Header, b *pdu.Bind, mode Mode, resp pdu.PDU) {
	if !c.authenticate(ctx, b.SystemID, b.Password) {
		c.log.WithFields(log.Fields{"system_id": b.SystemID}).Error("Authentication failed")
		_ = c.Send(resp, h.Seq, pdu.StatusInvPaswd)
		return
	}

	if c.mode == ModeUnbound {
		metricBoundConnections.Inc()
	}
	c.server.registry.bind(c, mode, b.SystemID, b.Password, c.server.Provider)
	c.log.WithFields(log.Fields{
		"system_id": b.SystemID,
		"mode":      mode.String(),
	}).Info("Bound")

	_ = c.Send(resp, h.Seq, pdu.StatusOK)
}

// authenticate consults the provider; a nil provider accepts everyone.
// Provider errors and panics count as rejection.
func (c *Connection) authenticate(ctx context.Context, systemID, password string) (ok bool) {
	if c.server.Provider == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.WithFields(log.Fields{"panic": r}).Error("Provider panicked in Authenticate")
			ok = false
		}
	}()

	ok, err := c.server.Provider.Authenticate(ctx, systemID, password)
	if err != nil {
		c.log.WithFields(log.Fields{"error": err}).Error("Provider failed to authenticate")
		return false
	}
	return ok
}

func (c *Connection) observeSeq(seq uint32) {
	for {
		cur := atomic.LoadUint32(&c.lastSeq)
		if seq <= cur || atomic.CompareAndSwapUint32(&c.lastSeq, cur, seq) {
			return
		}
	}
}

// Send encodes and writes one PDU with the given sequence number and
// status. An unencodable PDU degrades to a generic_nack with the same
// sequence number; an unencodable generic_nack is logged and dropped.
func (c *Connection) Send(p pdu.PDU, seq uint32, status pdu.Status) error {
	frame, err := pdu.Encode(p, seq, status)
	if err != nil {
		c.log.WithFields(log.Fields{
			"command": p.CommandID(),
			"error":   err,
		}).Error("Failed to encode PDU")

		if p.CommandID() == pdu.GenericNackID {
			return err
		}
		return c.Send(&pdu.GenericNack{}, seq, pdu.StatusUnknownErr)
	}

	c.log.WithFields(log.Fields{
		"command": p.CommandID(),
		"seq":     seq,
	}).Debug("Sending PDU")

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err = c.conn.Write(frame)
	return err
}

// sendNewSeq writes a server-originated PDU under a fresh sequence
// number.
func (c *Connection) sendNewSeq(p pdu.PDU) error {
	seq := atomic.AddUint32(&c.lastSeq, 1)
	return c.Send(p, seq, pdu.StatusOK)
}

// Receipt implements ResponseSender for the dispatcher.
func (c *Connection) Receipt(systemID string, p *pdu.DeliverSM) error {
	return c.server.routeReceipt(systemID, p)
}
