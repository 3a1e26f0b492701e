package smpp

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxymeal/smpp-server/smpp/external"
	"github.com/oxymeal/smpp-server/smpp/pdu"
)

type sentPDU struct {
	p      pdu.PDU
	seq    uint32
	status pdu.Status
}

// fakeSender records everything the dispatcher sends back.
type fakeSender struct {
	sent       []sentPDU
	receipts   []*pdu.DeliverSM
	receiptSID []string
}

func (s *fakeSender) Send(p pdu.PDU, seq uint32, status pdu.Status) error {
	s.sent = append(s.sent, sentPDU{p, seq, status})
	return nil
}

func (s *fakeSender) Receipt(systemID string, p *pdu.DeliverSM) error {
	s.receipts = append(s.receipts, p)
	s.receiptSID = append(s.receiptSID, systemID)
	return nil
}

// fakeProvider answers with scripted statuses, the last one repeating.
type fakeProvider struct {
	statuses       []external.DeliveryStatus
	delivered      []*external.ShortMessage
	panicOnDeliver bool
}

func (p *fakeProvider) Authenticate(ctx context.Context, systemID, password string) (bool, error) {
	return true, nil
}

func (p *fakeProvider) Deliver(ctx context.Context, sm *external.ShortMessage) (external.DeliveryStatus, error) {
	if p.panicOnDeliver {
		panic("deliver exploded")
	}
	p.delivered = append(p.delivered, sm)
	status := p.statuses[0]
	if len(p.statuses) > 1 {
		p.statuses = p.statuses[1:]
	}
	return status, nil
}

func newTestDispatcher(provider external.Provider) *Dispatcher {
	d := NewDispatcher("mtc", "pwd", provider)
	d.newBackOff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}
	return d
}

func newTestSubmit(registeredDelivery byte) *pdu.SubmitSM {
	sm := &pdu.SubmitSM{}
	sm.SourceAddrTON = 12
	sm.SourceAddrNPI = 34
	sm.SourceAddr = "src"
	sm.DestAddrTON = 56
	sm.DestAddrNPI = 67
	sm.DestinationAddr = "dst"
	sm.ESMClass = pdu.EsmModeStoreAndForward
	sm.RegisteredDelivery = registeredDelivery
	sm.ShortMessage = []byte("Hello world!")
	return sm
}

func receiptBody(t *testing.T, dsm *pdu.DeliverSM) []string {
	t.Helper()
	m := receiptRegex.FindStringSubmatch(string(dsm.ShortMessage))
	require.NotNil(t, m, string(dsm.ShortMessage))
	return m
}

func TestDispatcherStoreAndForward(t *testing.T) {
	provider := &fakeProvider{statuses: []external.DeliveryStatus{external.StatusOK}}
	d := newTestDispatcher(provider)
	rs := &fakeSender{}

	sm := newTestSubmit(0)
	d.Receive(context.Background(), pdu.Header{ID: pdu.SubmitSMID, Seq: 2}, sm, rs)

	require.Len(t, rs.sent, 1)
	resp, ok := rs.sent[0].p.(*pdu.SubmitSMResp)
	require.True(t, ok)
	assert.Equal(t, uint32(2), rs.sent[0].seq)
	assert.Equal(t, pdu.StatusOK, rs.sent[0].status)
	assert.Len(t, resp.MessageID, 8)

	require.Len(t, provider.delivered, 1)
	msg := provider.delivered[0]
	assert.Equal(t, "mtc", msg.SystemID)
	assert.Equal(t, "pwd", msg.Password)
	assert.Equal(t, byte(12), msg.SourceAddrTON)
	assert.Equal(t, byte(34), msg.SourceAddrNPI)
	assert.Equal(t, "src", msg.SourceAddr)
	assert.Equal(t, byte(56), msg.DestAddrTON)
	assert.Equal(t, byte(67), msg.DestAddrNPI)
	assert.Equal(t, "dst", msg.DestinationAddr)
	assert.Equal(t, "Hello world!", msg.Body)

	// No receipt was requested.
	assert.Empty(t, rs.receipts)
}

func TestDispatcherSuccessReceipt(t *testing.T) {
	provider := &fakeProvider{statuses: []external.DeliveryStatus{external.StatusOK}}
	d := newTestDispatcher(provider)
	rs := &fakeSender{}

	// Receipt bit with noise bits around it.
	sm := newTestSubmit(0b11100001)
	d.Receive(context.Background(), pdu.Header{ID: pdu.SubmitSMID, Seq: 7}, sm, rs)

	require.Len(t, rs.receipts, 1)
	assert.Equal(t, []string{"mtc"}, rs.receiptSID)

	dsm := rs.receipts[0]
	assert.Equal(t, byte(pdu.EsmClassReceipt), dsm.ESMClass)

	// Source and destination are swapped in the receipt.
	assert.Equal(t, "dst", dsm.SourceAddr)
	assert.Equal(t, byte(56), dsm.SourceAddrTON)
	assert.Equal(t, byte(67), dsm.SourceAddrNPI)
	assert.Equal(t, "src", dsm.DestinationAddr)
	assert.Equal(t, byte(12), dsm.DestAddrTON)
	assert.Equal(t, byte(34), dsm.DestAddrNPI)

	m := receiptBody(t, dsm)
	resp := rs.sent[0].p.(*pdu.SubmitSMResp)
	assert.Equal(t, resp.MessageID, m[1])
	assert.Equal(t, "1", m[3])
	assert.Equal(t, "DELIVRD", m[6])
	assert.Equal(t, "0", m[7])
	assert.Equal(t, "Hello world!", m[8])
}

func TestDispatcherFailureOnlyReceipt(t *testing.T) {
	provider := &fakeProvider{statuses: []external.DeliveryStatus{external.StatusOK}}
	d := newTestDispatcher(provider)
	rs := &fakeSender{}

	sm := newTestSubmit(0b11100010)
	d.Receive(context.Background(), pdu.Header{ID: pdu.SubmitSMID, Seq: 7}, sm, rs)

	// Successful delivery in failure-only mode: no receipt.
	assert.Empty(t, rs.receipts)

	provider.statuses = []external.DeliveryStatus{external.StatusUndeliverable}
	d.Receive(context.Background(), pdu.Header{ID: pdu.SubmitSMID, Seq: 8}, newTestSubmit(0b11100010), rs)

	require.Len(t, rs.receipts, 1)
	m := receiptBody(t, rs.receipts[0])
	assert.Equal(t, "UNDELIV", m[6])
	assert.Equal(t, "1", m[7])
}

func TestDispatcherErrorReceiptStats(t *testing.T) {
	samples := []struct {
		status external.DeliveryStatus
		stat   string
	}{
		{external.StatusGenericError, "EXPIRED"},
		{external.StatusAuthFailed, "REJECTD"},
		{external.StatusNoBalance, "REJECTD"},
		{external.StatusUndeliverable, "UNDELIV"},
	}
	for _, sample := range samples {
		provider := &fakeProvider{statuses: []external.DeliveryStatus{sample.status}}
		d := newTestDispatcher(provider)
		rs := &fakeSender{}

		d.Receive(context.Background(), pdu.Header{ID: pdu.SubmitSMID, Seq: 1}, newTestSubmit(0b00000001), rs)

		require.Len(t, rs.receipts, 1, sample.status.String())
		m := receiptBody(t, rs.receipts[0])
		assert.Equal(t, sample.stat, m[6], sample.status.String())
	}
}

func TestDispatcherTryLaterRetry(t *testing.T) {
	provider := &fakeProvider{statuses: []external.DeliveryStatus{
		external.StatusTryLater,
		external.StatusTryLater,
		external.StatusOK,
	}}
	d := newTestDispatcher(provider)
	rs := &fakeSender{}

	d.Receive(context.Background(), pdu.Header{ID: pdu.SubmitSMID, Seq: 3}, newTestSubmit(0b00000001), rs)

	assert.Len(t, provider.delivered, 3)
	require.Len(t, rs.receipts, 1)
	m := receiptBody(t, rs.receipts[0])
	assert.Equal(t, "DELIVRD", m[6])
}

func TestDispatcherValidityExpiry(t *testing.T) {
	provider := &fakeProvider{statuses: []external.DeliveryStatus{external.StatusTryLater}}
	d := newTestDispatcher(provider)
	rs := &fakeSender{}

	sm := newTestSubmit(0b00000001)
	// Validity of zero: the deadline passes before the first retry.
	sm.ValidityPeriod = "000000000000000R"
	d.Receive(context.Background(), pdu.Header{ID: pdu.SubmitSMID, Seq: 4}, sm, rs)

	assert.Len(t, provider.delivered, 1)
	require.Len(t, rs.receipts, 1)
	m := receiptBody(t, rs.receipts[0])
	assert.Equal(t, "EXPIRED", m[6])
}

func TestDispatcherNacksNonSubmit(t *testing.T) {
	d := newTestDispatcher(&fakeProvider{statuses: []external.DeliveryStatus{external.StatusOK}})
	rs := &fakeSender{}

	d.Receive(context.Background(), pdu.Header{ID: pdu.DataSMID, Seq: 5}, &pdu.DataSM{}, rs)

	require.Len(t, rs.sent, 1)
	assert.IsType(t, &pdu.GenericNack{}, rs.sent[0].p)
	assert.Equal(t, uint32(5), rs.sent[0].seq)
	assert.Equal(t, pdu.StatusUnknownErr, rs.sent[0].status)
}

func TestDispatcherNacksBadMessagingMode(t *testing.T) {
	provider := &fakeProvider{statuses: []external.DeliveryStatus{external.StatusOK}}
	d := newTestDispatcher(provider)
	rs := &fakeSender{}

	sm := newTestSubmit(0)
	sm.ESMClass = pdu.EsmModeDatagram
	d.Receive(context.Background(), pdu.Header{ID: pdu.SubmitSMID, Seq: 6}, sm, rs)

	require.Len(t, rs.sent, 1)
	assert.IsType(t, &pdu.GenericNack{}, rs.sent[0].p)
	assert.Equal(t, pdu.StatusUnknownErr, rs.sent[0].status)
	assert.Empty(t, provider.delivered)
}

func TestDispatcherProviderPanicIsGenericError(t *testing.T) {
	provider := &fakeProvider{panicOnDeliver: true}
	d := newTestDispatcher(provider)
	rs := &fakeSender{}

	d.Receive(context.Background(), pdu.Header{ID: pdu.SubmitSMID, Seq: 9}, newTestSubmit(0b00000001), rs)

	require.Len(t, rs.receipts, 1)
	m := receiptBody(t, rs.receipts[0])
	assert.Equal(t, "EXPIRED", m[6])
}
