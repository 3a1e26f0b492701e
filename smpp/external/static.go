package external

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"os"
)

// StaticProvider authenticates against a fixed system_id -> password map
// loaded from a JSON file and accepts every delivery.
type StaticProvider struct {
	credentials map[string]string
}

func NewStaticProvider(credentials map[string]string) *StaticProvider {
	return &StaticProvider{credentials: credentials}
}

// LoadStaticProvider reads the credentials map from a JSON file of the
// form {"system_id": "password", ...}.
func LoadStaticProvider(path string) (*StaticProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	var credentials map[string]string
	if err := json.Unmarshal(raw, &credentials); err != nil {
		return nil, fmt.Errorf("parsing credentials file %s: %w", path, err)
	}
	return NewStaticProvider(credentials), nil
}

func (p *StaticProvider) Authenticate(ctx context.Context, systemID, password string) (bool, error) {
	want, ok := p.credentials[systemID]
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1, nil
}

func (p *StaticProvider) Deliver(ctx context.Context, sm *ShortMessage) (DeliveryStatus, error) {
	return StatusOK, nil
}
