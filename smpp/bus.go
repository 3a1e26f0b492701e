package smpp

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Publisher is the sending side of the receipt bus.
type Publisher interface {
	Publish(payload []byte) error
	Close() error
}

// encodeBusPayload frames one routed receipt: the target system_id, a NUL
// separator and the encoded deliver_sm.
func encodeBusPayload(systemID string, frame []byte) []byte {
	out := make([]byte, 0, len(systemID)+1+len(frame))
	out = append(out, systemID...)
	out = append(out, 0x00)
	return append(out, frame...)
}

func decodeBusPayload(payload []byte) (string, []byte, error) {
	i := bytes.IndexByte(payload, 0x00)
	if i < 0 {
		return "", nil, fmt.Errorf("bus payload carries no system_id separator")
	}
	return string(payload[:i]), payload[i+1:], nil
}

// stripScheme turns a tcp://host:port bus URL into a dialable address.
func stripScheme(url string) string {
	return strings.TrimPrefix(url, "tcp://")
}

const subscriberQueueSize = 64

// busPublisher fans published payloads out to every connected subscriber
// over plain TCP, one goroutine and one bounded queue per subscriber.
// Slow subscribers lose messages rather than stall the publisher.
type busPublisher struct {
	ln net.Listener

	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool
}

// NewBusPublisher starts the bus endpoint of one worker on the given
// tcp:// URL.
func NewBusPublisher(url string) (Publisher, error) {
	ln, err := net.Listen("tcp", stripScheme(url))
	if err != nil {
		return nil, fmt.Errorf("listening on bus endpoint %s: %w", url, err)
	}
	p := &busPublisher{
		ln:   ln,
		subs: make(map[chan []byte]struct{}),
	}
	go p.acceptLoop()

	log.WithFields(log.Fields{"url": url}).Info("Receipt bus publisher listening")
	return p, nil
}

func (p *busPublisher) acceptLoop() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		go p.serveSubscriber(conn)
	}
}

func (p *busPublisher) serveSubscriber(conn net.Conn) {
	q := make(chan []byte, subscriberQueueSize)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.subs[q] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.subs, q)
		p.mu.Unlock()
		conn.Close()
	}()

	// The subscriber never sends anything; a read unblocking means it
	// went away.
	go func() {
		_, _ = conn.Read(make([]byte, 1))
		conn.Close()
	}()

	var lenb [4]byte
	for payload := range q {
		binary.BigEndian.PutUint32(lenb[:], uint32(len(payload)))
		if _, err := conn.Write(lenb[:]); err != nil {
			return
		}
		if _, err := conn.Write(payload); err != nil {
			return
		}
	}
}

func (p *busPublisher) Publish(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("bus publisher is closed")
	}

	metricBusPublished.Inc()
	for q := range p.subs {
		select {
		case q <- payload:
		default:
			metricBusDropped.Inc()
			log.Warn("Dropped bus message for a slow subscriber")
		}
	}
	return nil
}

func (p *busPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for q := range p.subs {
		close(q)
	}
	p.subs = make(map[chan []byte]struct{})
	p.mu.Unlock()

	return p.ln.Close()
}

const busRedialDelay = 100 * time.Millisecond

// subscribeBus dials the bus endpoint and hands every received payload to
// the handler, redialing on any failure until the context is cancelled.
// Endpoints of workers that have not started yet simply connect later.
func subscribeBus(ctx context.Context, url string, handler func(payload []byte)) {
	addr := stripScheme(url)
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(busRedialDelay):
			}
			continue
		}

		readBusFrames(ctx, conn, handler)
	}
}

func readBusFrames(ctx context.Context, conn net.Conn, handler func(payload []byte)) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var lenb [4]byte
	for {
		if _, err := io.ReadFull(conn, lenb[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(lenb[:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		metricBusDelivered.Inc()
		handler(payload)
	}
}
