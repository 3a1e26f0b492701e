package smpp

import (
	"fmt"
	"time"

	"github.com/oxymeal/smpp-server/smpp/external"
	"github.com/oxymeal/smpp-server/smpp/pdu"
)

// receiptTextLimit caps the echoed message text in a receipt body.
const receiptTextLimit = 20

// receiptStat maps a terminal delivery status onto the receipt stat
// token. TRY_LATER reaches a receipt only once the validity period runs
// out, so it reports as expired; GENERIC_ERROR reports the same.
func receiptStat(status external.DeliveryStatus) string {
	switch status {
	case external.StatusOK:
		return "DELIVRD"
	case external.StatusUndeliverable:
		return "UNDELIV"
	case external.StatusAuthFailed, external.StatusNoBalance:
		return "REJECTD"
	}
	return "EXPIRED"
}

// formatReceipt renders the delivery receipt body for one submitted
// message.
func formatReceipt(messageID string, status external.DeliveryStatus, submitted, done time.Time, body []byte) string {
	dlvrd, errCode := 1, 0
	if status != external.StatusOK {
		dlvrd, errCode = 0, 1
	}
	text := body
	if len(text) > receiptTextLimit {
		text = text[:receiptTextLimit]
	}
	return fmt.Sprintf("id:%s sub:001 dlvrd:%d submit date:%s done date:%s stat:%s err:%d text:%s",
		messageID, dlvrd,
		pdu.FormatReceiptDate(submitted), pdu.FormatReceiptDate(done),
		receiptStat(status), errCode, text)
}
