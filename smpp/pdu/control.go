package pdu

// emptyBody is embedded by the commands whose body is zero octets.
type emptyBody struct{}

func (emptyBody) MarshalBinary() ([]byte, error) { return nil, nil }

func (emptyBody) UnmarshalBinary(body []byte) error { return nil }

// EnquireLink is the link keepalive probe.
type EnquireLink struct{ emptyBody }

func (*EnquireLink) CommandID() CommandID { return EnquireLinkID }

func (*EnquireLink) Resp() *EnquireLinkResp { return &EnquireLinkResp{} }

type EnquireLinkResp struct{ emptyBody }

func (*EnquireLinkResp) CommandID() CommandID { return EnquireLinkRespID }

// Unbind releases the session bound on the connection.
type Unbind struct{ emptyBody }

func (*Unbind) CommandID() CommandID { return UnbindID }

func (*Unbind) Resp() *UnbindResp { return &UnbindResp{} }

type UnbindResp struct{ emptyBody }

func (*UnbindResp) CommandID() CommandID { return UnbindRespID }

// GenericNack is the catch-all negative acknowledgement; the error lives
// in the header's command_status.
type GenericNack struct{ emptyBody }

func (*GenericNack) CommandID() CommandID { return GenericNackID }
