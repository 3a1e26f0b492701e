package pdu

import (
	"errors"
)

var (
	// ErrMalformedFrame reports a wire frame that cannot be decoded into a
	// PDU: bad declared length, missing C-string terminator, truncated
	// fixed-size fields or an unknown command_id.
	ErrMalformedFrame = errors.New("pdu: malformed frame")

	// ErrEncode reports a PDU whose fields exceed their SMPP-defined
	// maximum sizes and therefore cannot be put on the wire.
	ErrEncode = errors.New("pdu: encoding failed")

	// ErrUnparseableTime reports an SMPP time string that matches neither
	// the absolute nor the relative format.
	ErrUnparseableTime = errors.New("pdu: unparseable time")
)
