package smpp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/oxymeal/smpp-server/smpp/external"
	"github.com/oxymeal/smpp-server/smpp/pdu"
)

// defaultValidityPeriod bounds retries of a submission that carries no
// validity_period of its own.
const defaultValidityPeriod = 60 * time.Second

// ResponseSender is how the dispatcher talks back to the network: Send
// answers on the submitting connection, Receipt fans a deliver_sm out to
// the user's receivers (directly or over the receipt bus).
type ResponseSender interface {
	Send(p pdu.PDU, seq uint32, status pdu.Status) error
	Receipt(systemID string, p *pdu.DeliverSM) error
}

// Dispatcher processes the non-control PDUs of one bound user: it owns
// the store-and-forward submit_sm path, including delivery retries,
// validity expiry and receipt synthesis. Bind and unbind are handled by
// the caller. Receive never panics; processing errors turn into
// generic_nack.
type Dispatcher struct {
	systemID string
	password string
	provider external.Provider

	// newBackOff builds the retry spacing for TRY_LATER deliveries.
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

func NewDispatcher(systemID, password string, provider external.Provider) *Dispatcher {
	return &Dispatcher{
		systemID: systemID,
		password: password,
		provider: provider,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		now: time.Now,
	}
}

// Receive handles one incoming PDU from a transmitting connection.
func (d *Dispatcher) Receive(ctx context.Context, h pdu.Header, p pdu.PDU, rs ResponseSender) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"system_id": d.systemID,
				"command":   h.ID,
				"panic":     r,
			}).Error("Panic while dispatching PDU")
			_ = rs.Send(&pdu.GenericNack{}, h.Seq, pdu.StatusUnknownErr)
		}
	}()

	log.WithFields(log.Fields{
		"system_id": d.systemID,
		"command":   h.ID,
		"seq":       h.Seq,
	}).Info("Dispatching PDU")

	sm, ok := p.(*pdu.SubmitSM)
	if !ok {
		_ = rs.Send(&pdu.GenericNack{}, h.Seq, pdu.StatusUnknownErr)
		return
	}
	d.handleSubmit(ctx, h, sm, rs)
}

func (d *Dispatcher) handleSubmit(ctx context.Context, h pdu.Header, sm *pdu.SubmitSM, rs ResponseSender) {
	mode := sm.ESMClass & 0x03
	if mode != pdu.EsmModeDefault && mode != pdu.EsmModeStoreAndForward {
		log.WithFields(log.Fields{
			"system_id": d.systemID,
			"esm_class": sm.ESMClass,
		}).Error("Unsupported messaging mode")
		_ = rs.Send(&pdu.GenericNack{}, h.Seq, pdu.StatusUnknownErr)
		return
	}

	messageID := newMessageID()
	if err := rs.Send(sm.Resp(messageID), h.Seq, pdu.StatusOK); err != nil {
		log.WithFields(log.Fields{
			"system_id": d.systemID,
			"error":     err,
		}).Error("Failed to send submit_sm_resp")
		return
	}

	submitted := d.now()
	deadline := d.validityDeadline(sm.ValidityPeriod, submitted)

	status := d.deliver(ctx, sm, deadline)
	metricSubmits.WithLabelValues(status.String()).Inc()

	log.WithFields(log.Fields{
		"system_id":  d.systemID,
		"message_id": messageID,
		"status":     status.String(),
	}).Info("Message delivery finished")

	if !receiptWanted(sm.RegisteredDelivery, status) {
		return
	}

	receipt := &pdu.DeliverSM{}
	receipt.ServiceType = sm.ServiceType
	receipt.SourceAddrTON = sm.DestAddrTON
	receipt.SourceAddrNPI = sm.DestAddrNPI
	receipt.SourceAddr = sm.DestinationAddr
	receipt.DestAddrTON = sm.SourceAddrTON
	receipt.DestAddrNPI = sm.SourceAddrNPI
	receipt.DestinationAddr = sm.SourceAddr
	receipt.ESMClass = pdu.EsmClassReceipt
	receipt.RegisteredDelivery = 0
	receipt.ShortMessage = []byte(formatReceipt(messageID, status, submitted, d.now(), sm.ShortMessage))

	metricReceipts.Inc()
	if err := rs.Receipt(d.systemID, receipt); err != nil {
		log.WithFields(log.Fields{
			"system_id":  d.systemID,
			"message_id": messageID,
			"error":      err,
		}).Error("Failed to route delivery receipt")
	}
}

// deliver pushes the message to the provider, retrying TRY_LATER answers
// until the validity deadline passes. Provider errors and panics count as
// GENERIC_ERROR.
func (d *Dispatcher) deliver(ctx context.Context, sm *pdu.SubmitSM, deadline time.Time) external.DeliveryStatus {
	msg := &external.ShortMessage{
		SystemID:        d.systemID,
		Password:        d.password,
		SourceAddrTON:   sm.SourceAddrTON,
		SourceAddrNPI:   sm.SourceAddrNPI,
		SourceAddr:      sm.SourceAddr,
		DestAddrTON:     sm.DestAddrTON,
		DestAddrNPI:     sm.DestAddrNPI,
		DestinationAddr: sm.DestinationAddr,
		Body:            string(sm.ShortMessage),
	}

	b := d.newBackOff()
	for {
		status := d.deliverOnce(ctx, msg)
		if status != external.StatusTryLater {
			return status
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop || d.now().Add(wait).After(deadline) {
			return external.StatusTryLater
		}

		select {
		case <-ctx.Done():
			return external.StatusTryLater
		case <-time.After(wait):
		}
	}
}

func (d *Dispatcher) deliverOnce(ctx context.Context, msg *external.ShortMessage) (status external.DeliveryStatus) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"system_id": d.systemID,
				"panic":     r,
			}).Error("Provider panicked in Deliver")
			status = external.StatusGenericError
		}
	}()

	status, err := d.provider.Deliver(ctx, msg)
	if err != nil {
		log.WithFields(log.Fields{
			"system_id": d.systemID,
			"error":     err,
		}).Error("Provider failed to deliver message")
		return external.StatusGenericError
	}
	return status
}

// validityDeadline resolves the validity_period field against the submit
// time. Empty and unparseable strings fall back to the default window.
func (d *Dispatcher) validityDeadline(validity string, submitted time.Time) time.Time {
	if validity == "" {
		return submitted.Add(defaultValidityPeriod)
	}
	deadline, err := pdu.ParseTime(validity, submitted)
	if err != nil {
		log.WithFields(log.Fields{
			"system_id":       d.systemID,
			"validity_period": validity,
		}).Warn("Unparseable validity_period, using the default")
		return submitted.Add(defaultValidityPeriod)
	}
	return deadline
}

// receiptWanted applies the registered_delivery receipt bits; noise bits
// outside the low two are ignored.
func receiptWanted(registeredDelivery byte, status external.DeliveryStatus) bool {
	switch registeredDelivery & 0x03 {
	case pdu.ReceiptAlways:
		return true
	case pdu.ReceiptOnFailure:
		return status != external.StatusOK
	}
	return false
}

// newMessageID draws a random 8-character hex message id.
func newMessageID() string {
	var raw [4]byte
	if _, err := rand.Read(raw[:]); err != nil {
		// crypto/rand does not fail on any supported platform.
		panic(err)
	}
	return hex.EncodeToString(raw[:])
}
