package pdu

import "fmt"

func errShortMessageTooLong(n int) error {
	return fmt.Errorf("%w: short_message of %d octets exceeds the maximum of %d", ErrEncode, n, maxShortMessage)
}

// smBody is the field layout shared by submit_sm and deliver_sm.
type smBody struct {
	ServiceType          string
	SourceAddrTON        byte
	SourceAddrNPI        byte
	SourceAddr           string
	DestAddrTON          byte
	DestAddrNPI          byte
	DestinationAddr      string
	ESMClass             byte
	ProtocolID           byte
	PriorityFlag         byte
	ScheduleDeliveryTime string
	ValidityPeriod       string
	RegisteredDelivery   byte
	ReplaceIfPresent     byte
	DataCoding           byte
	SMDefaultMsgID       byte
	ShortMessage         []byte
}

func (p *smBody) MarshalBinary() ([]byte, error) {
	w := &bodyWriter{}
	w.cString(p.ServiceType, maxServiceType, "service_type")
	w.uint8(p.SourceAddrTON)
	w.uint8(p.SourceAddrNPI)
	w.cString(p.SourceAddr, maxAddress, "source_addr")
	w.uint8(p.DestAddrTON)
	w.uint8(p.DestAddrNPI)
	w.cString(p.DestinationAddr, maxAddress, "destination_addr")
	w.uint8(p.ESMClass)
	w.uint8(p.ProtocolID)
	w.uint8(p.PriorityFlag)
	w.cString(p.ScheduleDeliveryTime, maxTimeString, "schedule_delivery_time")
	w.cString(p.ValidityPeriod, maxTimeString, "validity_period")
	w.uint8(p.RegisteredDelivery)
	w.uint8(p.ReplaceIfPresent)
	w.uint8(p.DataCoding)
	w.uint8(p.SMDefaultMsgID)
	if len(p.ShortMessage) > maxShortMessage {
		w.err = errShortMessageTooLong(len(p.ShortMessage))
		return w.bytes()
	}
	w.uint8(byte(len(p.ShortMessage)))
	w.octets(p.ShortMessage)
	return w.bytes()
}

func (p *smBody) UnmarshalBinary(body []byte) error {
	r := newBodyReader(body)
	var err error
	if p.ServiceType, err = r.cString(maxServiceType, "service_type"); err != nil {
		return err
	}
	if p.SourceAddrTON, err = r.uint8("source_addr_ton"); err != nil {
		return err
	}
	if p.SourceAddrNPI, err = r.uint8("source_addr_npi"); err != nil {
		return err
	}
	if p.SourceAddr, err = r.cString(maxAddress, "source_addr"); err != nil {
		return err
	}
	if p.DestAddrTON, err = r.uint8("dest_addr_ton"); err != nil {
		return err
	}
	if p.DestAddrNPI, err = r.uint8("dest_addr_npi"); err != nil {
		return err
	}
	if p.DestinationAddr, err = r.cString(maxAddress, "destination_addr"); err != nil {
		return err
	}
	if p.ESMClass, err = r.uint8("esm_class"); err != nil {
		return err
	}
	if p.ProtocolID, err = r.uint8("protocol_id"); err != nil {
		return err
	}
	if p.PriorityFlag, err = r.uint8("priority_flag"); err != nil {
		return err
	}
	if p.ScheduleDeliveryTime, err = r.cString(maxTimeString, "schedule_delivery_time"); err != nil {
		return err
	}
	if p.ValidityPeriod, err = r.cString(maxTimeString, "validity_period"); err != nil {
		return err
	}
	if p.RegisteredDelivery, err = r.uint8("registered_delivery"); err != nil {
		return err
	}
	if p.ReplaceIfPresent, err = r.uint8("replace_if_present"); err != nil {
		return err
	}
	if p.DataCoding, err = r.uint8("data_coding"); err != nil {
		return err
	}
	if p.SMDefaultMsgID, err = r.uint8("sm_default_msg_id"); err != nil {
		return err
	}
	n, err := r.uint8("sm_length")
	if err != nil {
		return err
	}
	if p.ShortMessage, err = r.octets(int(n), "short_message"); err != nil {
		return err
	}
	return nil
}

// SubmitSM is an ESME-originated short message.
type SubmitSM struct{ smBody }

func (*SubmitSM) CommandID() CommandID { return SubmitSMID }

// Resp builds the matching response carrying the assigned message id.
func (p *SubmitSM) Resp(messageID string) *SubmitSMResp {
	return &SubmitSMResp{MessageID: messageID}
}

type SubmitSMResp struct {
	MessageID string
}

func (*SubmitSMResp) CommandID() CommandID { return SubmitSMRespID }

func (p *SubmitSMResp) MarshalBinary() ([]byte, error) {
	w := &bodyWriter{}
	w.cString(p.MessageID, maxMessageID, "message_id")
	return w.bytes()
}

func (p *SubmitSMResp) UnmarshalBinary(body []byte) error {
	r := newBodyReader(body)
	var err error
	p.MessageID, err = r.cString(maxMessageID, "message_id")
	return err
}
