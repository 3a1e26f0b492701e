package pdu

// rawPDU carries a body verbatim for the commands the server does not
// interpret. Round-trips byte-exactly.
type rawPDU struct {
	Raw []byte
}

func (p *rawPDU) MarshalBinary() ([]byte, error) { return p.Raw, nil }

func (p *rawPDU) UnmarshalBinary(body []byte) error {
	p.Raw = append([]byte(nil), body...)
	return nil
}

type QuerySM struct{ rawPDU }

func (*QuerySM) CommandID() CommandID { return QuerySMID }

type QuerySMResp struct{ rawPDU }

func (*QuerySMResp) CommandID() CommandID { return QuerySMRespID }

type CancelSM struct{ rawPDU }

func (*CancelSM) CommandID() CommandID { return CancelSMID }

type CancelSMResp struct{ rawPDU }

func (*CancelSMResp) CommandID() CommandID { return CancelSMRespID }

type ReplaceSM struct{ rawPDU }

func (*ReplaceSM) CommandID() CommandID { return ReplaceSMID }

type ReplaceSMResp struct{ rawPDU }

func (*ReplaceSMResp) CommandID() CommandID { return ReplaceSMRespID }

type SubmitMulti struct{ rawPDU }

func (*SubmitMulti) CommandID() CommandID { return SubmitMultiID }

type SubmitMultiResp struct{ rawPDU }

func (*SubmitMultiResp) CommandID() CommandID { return SubmitMultiRespID }

type DataSM struct{ rawPDU }

func (*DataSM) CommandID() CommandID { return DataSMID }

type DataSMResp struct{ rawPDU }

func (*DataSMResp) CommandID() CommandID { return DataSMRespID }

type Outbind struct{ rawPDU }

func (*Outbind) CommandID() CommandID { return OutbindID }
