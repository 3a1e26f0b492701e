// Package pdu implements encoding and decoding of the SMPP v3.4 protocol
// data units used by the server: the bind family, unbind, enquire_link,
// submit_sm, deliver_sm, generic_nack and their responses. The remaining
// v3.4 commands are carried as raw-body stubs so that unknown-to-us but
// well-formed traffic still round-trips byte-exactly.
package pdu

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
)

// PDU is a single SMPP command body. The 16-byte header (command_length,
// command_id, command_status, sequence_number) is owned by Encode/Decode;
// MarshalBinary and UnmarshalBinary operate on the body alone.
type PDU interface {
	CommandID() CommandID
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Header is the fixed SMPP frame header. All four words are big-endian on
// the wire.
type Header struct {
	Length uint32
	ID     CommandID
	Status Status
	Seq    uint32
}

// Decode parses one complete wire frame into its header and body. The
// frame must contain exactly one PDU: the declared command_length has to
// match len(frame).
func Decode(frame []byte) (Header, PDU, error) {
	var h Header
	if len(frame) < HeaderSize {
		return h, nil, fmt.Errorf("%w: frame of %d bytes is shorter than the header", ErrMalformedFrame, len(frame))
	}

	h.Length = binary.BigEndian.Uint32(frame[0:4])
	h.ID = CommandID(binary.BigEndian.Uint32(frame[4:8]))
	h.Status = Status(binary.BigEndian.Uint32(frame[8:12]))
	h.Seq = binary.BigEndian.Uint32(frame[12:16])

	if int(h.Length) != len(frame) {
		return h, nil, fmt.Errorf("%w: declared length %d does not match frame length %d",
			ErrMalformedFrame, h.Length, len(frame))
	}
	if h.Length > MaxPDUSize {
		return h, nil, fmt.Errorf("%w: declared length %d exceeds the maximum of %d",
			ErrMalformedFrame, h.Length, MaxPDUSize)
	}

	p := newPDU(h.ID)
	if p == nil {
		return h, nil, fmt.Errorf("%w: unknown command id 0x%08X", ErrMalformedFrame, uint32(h.ID))
	}
	if err := p.UnmarshalBinary(frame[HeaderSize:]); err != nil {
		return h, nil, fmt.Errorf("%w: decoding %s: %v", ErrMalformedFrame, h.ID, err)
	}
	return h, p, nil
}

// Encode serializes a PDU into a complete wire frame. command_length is
// computed from the current field sizes; seq and status fill the header.
func Encode(p PDU, seq uint32, status Status) ([]byte, error) {
	body, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}

	l := HeaderSize + len(body)
	if l > MaxPDUSize {
		return nil, fmt.Errorf("%w: %s of %d bytes exceeds the maximum PDU size", ErrEncode, p.CommandID(), l)
	}

	frame := make([]byte, l)
	binary.BigEndian.PutUint32(frame[0:4], uint32(l))
	binary.BigEndian.PutUint32(frame[4:8], uint32(p.CommandID()))
	binary.BigEndian.PutUint32(frame[8:12], uint32(status))
	binary.BigEndian.PutUint32(frame[12:16], seq)
	copy(frame[HeaderSize:], body)
	return frame, nil
}

// newPDU returns an empty PDU matching the command id, or nil when the id
// is not part of the SMPP v3.4 command set.
func newPDU(id CommandID) PDU {
	switch id {
	case GenericNackID:
		return &GenericNack{}
	case BindReceiverID:
		return &BindReceiver{}
	case BindReceiverRespID:
		return &BindReceiverResp{}
	case BindTransmitterID:
		return &BindTransmitter{}
	case BindTransmitterRespID:
		return &BindTransmitterResp{}
	case BindTransceiverID:
		return &BindTransceiver{}
	case BindTransceiverRespID:
		return &BindTransceiverResp{}
	case UnbindID:
		return &Unbind{}
	case UnbindRespID:
		return &UnbindResp{}
	case EnquireLinkID:
		return &EnquireLink{}
	case EnquireLinkRespID:
		return &EnquireLinkResp{}
	case SubmitSMID:
		return &SubmitSM{}
	case SubmitSMRespID:
		return &SubmitSMResp{}
	case DeliverSMID:
		return &DeliverSM{}
	case DeliverSMRespID:
		return &DeliverSMResp{}
	case QuerySMID:
		return &QuerySM{}
	case QuerySMRespID:
		return &QuerySMResp{}
	case CancelSMID:
		return &CancelSM{}
	case CancelSMRespID:
		return &CancelSMResp{}
	case ReplaceSMID:
		return &ReplaceSM{}
	case ReplaceSMRespID:
		return &ReplaceSMResp{}
	case SubmitMultiID:
		return &SubmitMulti{}
	case SubmitMultiRespID:
		return &SubmitMultiResp{}
	case DataSMID:
		return &DataSM{}
	case DataSMRespID:
		return &DataSMResp{}
	case OutbindID:
		return &Outbind{}
	}
	return nil
}

// bodyReader reads the typed fields of a PDU body in order.
type bodyReader struct {
	*bytes.Buffer
}

func newBodyReader(body []byte) *bodyReader {
	return &bodyReader{Buffer: bytes.NewBuffer(body)}
}

// cString reads a NUL-terminated ASCII string of at most max octets
// (excluding the terminator).
func (r *bodyReader) cString(max int, field string) (string, error) {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%s is not NUL-terminated", field)
		}
		if b == 0x00 {
			return string(out), nil
		}
		if len(out) == max {
			return "", fmt.Errorf("%s is longer than %d octets", field, max)
		}
		out = append(out, b)
	}
}

func (r *bodyReader) uint8(field string) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%s underflows the body", field)
	}
	return b, nil
}

// octets reads a raw octet string whose length was given by a preceding
// length field.
func (r *bodyReader) octets(n int, field string) ([]byte, error) {
	if r.Len() < n {
		return nil, fmt.Errorf("%s of %d octets underflows the body", field, n)
	}
	return r.Next(n), nil
}

// bodyWriter writes the typed fields of a PDU body in order, enforcing
// the per-field maximum sizes on the way out.
type bodyWriter struct {
	buf bytes.Buffer
	err error
}

func (w *bodyWriter) cString(s string, max int, field string) {
	if w.err != nil {
		return
	}
	if len(s) > max {
		w.err = fmt.Errorf("%w: %s of %d octets exceeds the maximum of %d", ErrEncode, field, len(s), max)
		return
	}
	w.buf.WriteString(s)
	w.buf.WriteByte(0x00)
}

func (w *bodyWriter) uint8(b byte) {
	if w.err != nil {
		return
	}
	w.buf.WriteByte(b)
}

func (w *bodyWriter) octets(b []byte) {
	if w.err != nil {
		return
	}
	w.buf.Write(b)
}

func (w *bodyWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}
