package pdu

// DeliverSM is an SMSC-originated short message or delivery receipt.
// The body layout is identical to submit_sm.
type DeliverSM struct{ smBody }

func (*DeliverSM) CommandID() CommandID { return DeliverSMID }

func (p *DeliverSM) Resp() *DeliverSMResp { return &DeliverSMResp{} }

// DeliverSMResp acknowledges a deliver_sm; message_id is unused and set
// to the empty string.
type DeliverSMResp struct {
	MessageID string
}

func (*DeliverSMResp) CommandID() CommandID { return DeliverSMRespID }

func (p *DeliverSMResp) MarshalBinary() ([]byte, error) {
	w := &bodyWriter{}
	w.cString(p.MessageID, maxMessageID, "message_id")
	return w.bytes()
}

func (p *DeliverSMResp) UnmarshalBinary(body []byte) error {
	r := newBodyReader(body)
	var err error
	p.MessageID, err = r.cString(maxMessageID, "message_id")
	return err
}
