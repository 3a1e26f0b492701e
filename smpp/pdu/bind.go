package pdu

// Per-field maximum sizes in octets, excluding the terminating NUL.
const (
	maxSystemID     = 15
	maxPassword     = 8
	maxSystemType   = 12
	maxAddressRange = 40
	maxServiceType  = 5
	maxAddress      = 20
	maxTimeString   = 16
	maxMessageID    = 64
	maxShortMessage = 254
)

// Bind carries the shared body of the three bind commands.
type Bind struct {
	SystemID         string
	Password         string
	SystemType       string
	InterfaceVersion byte
	AddrTON          byte
	AddrNPI          byte
	AddressRange     string
}

func (b *Bind) MarshalBinary() ([]byte, error) {
	w := &bodyWriter{}
	w.cString(b.SystemID, maxSystemID, "system_id")
	w.cString(b.Password, maxPassword, "password")
	w.cString(b.SystemType, maxSystemType, "system_type")
	w.uint8(b.InterfaceVersion)
	w.uint8(b.AddrTON)
	w.uint8(b.AddrNPI)
	w.cString(b.AddressRange, maxAddressRange, "address_range")
	return w.bytes()
}

func (b *Bind) UnmarshalBinary(body []byte) error {
	r := newBodyReader(body)
	var err error
	if b.SystemID, err = r.cString(maxSystemID, "system_id"); err != nil {
		return err
	}
	if b.Password, err = r.cString(maxPassword, "password"); err != nil {
		return err
	}
	if b.SystemType, err = r.cString(maxSystemType, "system_type"); err != nil {
		return err
	}
	if b.InterfaceVersion, err = r.uint8("interface_version"); err != nil {
		return err
	}
	if b.AddrTON, err = r.uint8("addr_ton"); err != nil {
		return err
	}
	if b.AddrNPI, err = r.uint8("addr_npi"); err != nil {
		return err
	}
	if b.AddressRange, err = r.cString(maxAddressRange, "address_range"); err != nil {
		return err
	}
	return nil
}

// BindResp carries the shared body of the three bind responses.
type BindResp struct {
	SystemID string
}

func (b *BindResp) MarshalBinary() ([]byte, error) {
	w := &bodyWriter{}
	w.cString(b.SystemID, maxSystemID, "system_id")
	return w.bytes()
}

func (b *BindResp) UnmarshalBinary(body []byte) error {
	r := newBodyReader(body)
	var err error
	b.SystemID, err = r.cString(maxSystemID, "system_id")
	return err
}

type BindReceiver struct{ Bind }

func (*BindReceiver) CommandID() CommandID { return BindReceiverID }

// Resp builds the matching response echoing the bound system_id.
func (p *BindReceiver) Resp() *BindReceiverResp {
	return &BindReceiverResp{BindResp{SystemID: p.SystemID}}
}

type BindReceiverResp struct{ BindResp }

func (*BindReceiverResp) CommandID() CommandID { return BindReceiverRespID }

type BindTransmitter struct{ Bind }

func (*BindTransmitter) CommandID() CommandID { return BindTransmitterID }

func (p *BindTransmitter) Resp() *BindTransmitterResp {
	return &BindTransmitterResp{BindResp{SystemID: p.SystemID}}
}

type BindTransmitterResp struct{ BindResp }

func (*BindTransmitterResp) CommandID() CommandID { return BindTransmitterRespID }

type BindTransceiver struct{ Bind }

func (*BindTransceiver) CommandID() CommandID { return BindTransceiverID }

func (p *BindTransceiver) Resp() *BindTransceiverResp {
	return &BindTransceiverResp{BindResp{SystemID: p.SystemID}}
}

type BindTransceiverResp struct{ BindResp }

func (*BindTransceiverResp) CommandID() CommandID { return BindTransceiverRespID }
