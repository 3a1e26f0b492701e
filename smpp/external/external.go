// Package external defines the contract between the SMPP server core and
// the systems that authenticate clients and carry messages onward, plus
// the provider implementations shipped with the server.
package external

import "context"

// DeliveryStatus is the terminal outcome a provider reports for one
// delivered message.
type DeliveryStatus int

const (
	StatusOK DeliveryStatus = iota
	StatusGenericError
	StatusAuthFailed
	StatusNoBalance
	StatusUndeliverable
	StatusTryLater
)

func (s DeliveryStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusGenericError:
		return "GENERIC_ERROR"
	case StatusAuthFailed:
		return "AUTH_FAILED"
	case StatusNoBalance:
		return "NO_BALANCE"
	case StatusUndeliverable:
		return "UNDELIVERABLE"
	case StatusTryLater:
		return "TRY_LATER"
	}
	return "UNKNOWN"
}

// ShortMessage is one submitted message handed to a provider, credentials
// of the submitting session included.
type ShortMessage struct {
	SystemID        string
	Password        string
	SourceAddrTON   byte
	SourceAddrNPI   byte
	SourceAddr      string
	DestAddrTON     byte
	DestAddrNPI     byte
	DestinationAddr string
	Body            string
}

// Provider is the external system behind the server: it authenticates
// binding clients and carries submitted messages onward. Implementations
// may block; both methods honor the context. The server tolerates errors
// and panics from either method.
type Provider interface {
	Authenticate(ctx context.Context, systemID, password string) (bool, error)
	Deliver(ctx context.Context, sm *ShortMessage) (DeliveryStatus, error)
}
