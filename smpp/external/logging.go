package external

import (
	"context"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
)

// LoggingProvider accepts any credentials and appends every delivered
// message to a text file. It is the default provider and exists mostly
// for smoke tests and local runs.
type LoggingProvider struct {
	path string

	mu sync.Mutex
	f  *os.File
}

func NewLoggingProvider(path string) *LoggingProvider {
	return &LoggingProvider{path: path}
}

func (p *LoggingProvider) Authenticate(ctx context.Context, systemID, password string) (bool, error) {
	return true, nil
}

func (p *LoggingProvider) Deliver(ctx context.Context, sm *ShortMessage) (DeliveryStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f == nil {
		f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return StatusGenericError, err
		}
		p.f = f
	}

	line := fmt.Sprintf("%s: %s -> %s: %s\n", sm.SystemID, sm.SourceAddr, sm.DestinationAddr, sm.Body)
	if _, err := p.f.WriteString(line); err != nil {
		return StatusGenericError, err
	}

	log.WithFields(log.Fields{
		"system_id": sm.SystemID,
		"source":    sm.SourceAddr,
		"dest":      sm.DestinationAddr,
	}).Debug("Logged delivered message")
	return StatusOK, nil
}

// Close flushes and closes the underlying file.
func (p *LoggingProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return nil
	}
	err := p.f.Close()
	p.f = nil
	return err
}
