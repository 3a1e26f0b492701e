package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/pires/go-proxyproto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// forwardBufferSize is the splice buffer of the master, in bytes.
const forwardBufferSize = 256

// Master owns the public TCP listener. It spawns one worker subprocess
// per configured slot and forwards each accepted connection, round-robin,
// to a worker's unix socket, byte for byte.
type Master struct {
	cfg Config

	ln      net.Listener
	workers []*exec.Cmd
	wg      sync.WaitGroup

	// nextWorker implements round-robin balancing.
	nextWorker int
}

func NewMaster(cfg Config) *Master {
	return &Master{cfg: cfg}
}

// StartWorkers re-executes this binary once per worker slot with
// SMPP_WORKER_INDEX set.
func (m *Master) StartWorkers() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving own executable: %w", err)
	}

	log.WithFields(log.Fields{"count": m.cfg.WorkersCount}).Debug("Starting workers")
	for i := 0; i < m.cfg.WorkersCount; i++ {
		log.WithFields(log.Fields{
			"worker": i,
			"socket": m.cfg.WorkerSocket(i),
			"queue":  m.cfg.QueueURL(i),
		}).Debug("Spawning worker")

		cmd := exec.Command(exe)
		cmd.Env = append(os.Environ(), fmt.Sprintf("SMPP_WORKER_INDEX=%d", i))
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			m.stopWorkers()
			return fmt.Errorf("starting worker %d: %w", i, err)
		}
		m.workers = append(m.workers, cmd)
	}
	return nil
}

// Listen binds the public listener, optionally behind the PROXY protocol.
func (m *Master) Listen() error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if m.cfg.HAProxyProxyProtocol {
		ln = &proxyproto.Listener{Listener: ln}
	}
	m.ln = ln

	log.WithFields(log.Fields{"addr": addr}).Info("Master listening")
	return nil
}

// Serve accepts connections until the listener closes.
func (m *Master) Serve() {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			return
		}

		worker := m.nextWorker
		m.nextWorker = (m.nextWorker + 1) % m.cfg.WorkersCount

		log.WithFields(log.Fields{
			"peer":   conn.RemoteAddr().String(),
			"worker": worker,
		}).Info("Incoming connection, forwarding to worker")

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.forward(conn, m.cfg.WorkerSocket(worker))
		}()
	}
}

// forward splices bytes between the client and a worker until either side
// closes.
func (m *Master) forward(client net.Conn, workerSock string) {
	defer client.Close()

	worker, err := net.Dial("unix", workerSock)
	if err != nil {
		log.WithFields(log.Fields{
			"socket": workerSock,
			"error":  err,
		}).Error("Failed to dial worker")
		return
	}
	defer worker.Close()

	splice := func(dst, src net.Conn) func() error {
		return func() error {
			_, err := io.CopyBuffer(dst, src, make([]byte, forwardBufferSize))
			// Unblock the opposite direction.
			dst.Close()
			src.Close()
			return err
		}
	}

	var g errgroup.Group
	g.Go(splice(worker, client))
	g.Go(splice(client, worker))
	_ = g.Wait()
}

// Stop closes the listener, terminates the workers and waits for the
// in-flight forwards to drain.
func (m *Master) Stop() {
	if m.ln != nil {
		m.ln.Close()
	}
	m.stopWorkers()
	m.wg.Wait()
}

func (m *Master) stopWorkers() {
	for _, cmd := range m.workers {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			log.WithFields(log.Fields{"pid": cmd.Process.Pid, "error": err}).Warn("Failed to signal worker")
		}
	}
	for _, cmd := range m.workers {
		if err := cmd.Wait(); err != nil {
			log.WithFields(log.Fields{"pid": cmd.Process.Pid, "error": err}).Warn("Worker exited with error")
		}
	}
	m.workers = nil
}
