package smpp

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxymeal/smpp-server/smpp/pdu"
)

// freeBusURL grabs a free localhost port for a bus endpoint.
func freeBusURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return fmt.Sprintf("tcp://%s", ln.Addr().String())
}

// subscribersSettled gives the redial loops time to connect before the
// first publish.
func subscribersSettled() {
	time.Sleep(500 * time.Millisecond)
}

func TestBusPayloadFraming(t *testing.T) {
	dsm := &pdu.DeliverSM{}
	dsm.SourceAddr = "dst"
	dsm.DestinationAddr = "src"
	dsm.ESMClass = pdu.EsmClassReceipt
	dsm.ShortMessage = []byte("id:1 ...")

	frame, err := pdu.Encode(dsm, 0, pdu.StatusOK)
	require.NoError(t, err)

	payload := encodeBusPayload("mtc", frame)
	systemID, gotFrame, err := decodeBusPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, "mtc", systemID)
	assert.Equal(t, frame, gotFrame)

	_, _, err = decodeBusPayload([]byte("no separator here"))
	assert.Error(t, err)
}

func TestBusPublishSubscribe(t *testing.T) {
	url := freeBusURL(t)

	p, err := NewBusPublisher(url)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []byte, 16)
	go subscribeBus(ctx, url, func(payload []byte) {
		cp := append([]byte(nil), payload...)
		got <- cp
	})
	subscribersSettled()

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Publish([]byte(fmt.Sprintf("payload-%d", i))))
	}

	// Delivery preserves publish order per subscriber.
	for i := 0; i < 3; i++ {
		select {
		case payload := <-got:
			assert.Equal(t, fmt.Sprintf("payload-%d", i), string(payload))
		case <-time.After(testReadTimeout):
			t.Fatalf("timed out waiting for payload %d", i)
		}
	}
}

func TestBusSubscriberOutlivesRedial(t *testing.T) {
	url := freeBusURL(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before any publisher exists.
	got := make(chan []byte, 1)
	go subscribeBus(ctx, url, func(payload []byte) {
		cp := append([]byte(nil), payload...)
		got <- cp
	})

	p, err := NewBusPublisher(url)
	require.NoError(t, err)
	defer p.Close()
	subscribersSettled()

	require.NoError(t, p.Publish([]byte("late start")))
	select {
	case payload := <-got:
		assert.Equal(t, "late start", string(payload))
	case <-time.After(testReadTimeout):
		t.Fatal("timed out waiting for the payload")
	}
}

// Scenario: a transmitter on one worker, a receiver on another. The
// receipt crosses the bus.
func TestReceiptAcrossWorkers(t *testing.T) {
	dir := t.TempDir()
	q1 := freeBusURL(t)
	q2 := freeBusURL(t)
	all := []string{q1, q2}

	pub := &Server{
		UnixSocket:    filepath.Join(dir, "pub.sock"),
		Provider:      testProvider(),
		PublishURL:    q1,
		SubscribeURLs: all,
	}
	require.NoError(t, pub.Start())
	defer pub.Stop()

	sub := &Server{
		UnixSocket:    filepath.Join(dir, "sub.sock"),
		Provider:      testProvider(),
		PublishURL:    q2,
		SubscribeURLs: all,
	}
	require.NoError(t, sub.Start())
	defer sub.Stop()

	subscribersSettled()

	r := dialTest(t, "unix", sub.UnixSocket)
	h, _ := r.bind(ModeReceiver, "qtc", "pwd", 1)
	require.Equal(t, pdu.StatusOK, h.Status)

	tr := dialTest(t, "unix", pub.UnixSocket)
	h, _ = tr.bind(ModeTransmitter, "qtc", "pwd", 1)
	require.Equal(t, pdu.StatusOK, h.Status)

	tr.submit(2, 0b00000001, "Hello world")
	_, p := tr.read()
	resp, ok := p.(*pdu.SubmitSMResp)
	require.True(t, ok)

	_, p = r.read()
	dsm, ok := p.(*pdu.DeliverSM)
	require.True(t, ok)

	m := receiptRegex.FindStringSubmatch(string(dsm.ShortMessage))
	require.NotNil(t, m, string(dsm.ShortMessage))
	assert.Equal(t, resp.MessageID, m[1])
}

// Scenario: a single worker subscribed to its own bus endpoint still
// delivers receipts to its local receivers exactly once.
func TestReceiptSelfSubscribedWorker(t *testing.T) {
	dir := t.TempDir()
	q := freeBusURL(t)

	uni := &Server{
		UnixSocket:    filepath.Join(dir, "uni.sock"),
		Provider:      testProvider(),
		PublishURL:    q,
		SubscribeURLs: []string{q},
	}
	require.NoError(t, uni.Start())
	defer uni.Stop()

	subscribersSettled()

	r := dialTest(t, "unix", uni.UnixSocket)
	h, _ := r.bind(ModeReceiver, "qtc", "pwd", 1)
	require.Equal(t, pdu.StatusOK, h.Status)

	tr := dialTest(t, "unix", uni.UnixSocket)
	h, _ = tr.bind(ModeTransmitter, "qtc", "pwd", 1)
	require.Equal(t, pdu.StatusOK, h.Status)

	tr.submit(2, 0b00000001, "Hello world")
	_, p := tr.read()
	require.IsType(t, &pdu.SubmitSMResp{}, p)

	_, p = r.read()
	require.IsType(t, &pdu.DeliverSM{}, p)

	// Exactly once: no duplicate behind the first receipt.
	r.expectNone(300 * time.Millisecond)
}
