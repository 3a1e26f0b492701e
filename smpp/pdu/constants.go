package pdu

const (
	// MaxPDUSize is the maximal size of a single PDU frame in bytes.
	MaxPDUSize = 4096
	// HeaderSize is the fixed size of the SMPP header.
	HeaderSize = 16
)

// Status represents the four byte command_status header field.
type Status uint32

// SMPP v3.4 command status subset used by the server.
const (
	StatusOK         Status = 0x00000000
	StatusInvMsgLen  Status = 0x00000001
	StatusInvCmdLen  Status = 0x00000002
	StatusInvCmdID   Status = 0x00000003
	StatusInvBnd     Status = 0x00000004 // ESME_RINVBNDSTS
	StatusAlyBnd     Status = 0x00000005
	StatusSysErr     Status = 0x00000008
	StatusBindFail   Status = 0x0000000D
	StatusInvPaswd   Status = 0x0000000E // ESME_RINVPASWD
	StatusInvSysID   Status = 0x0000000F
	StatusThrottled  Status = 0x00000058
	StatusUnknownErr Status = 0x000000FF // ESME_RUNKNOWNERR
)

// CommandID is the four byte command_id header field.
type CommandID uint32

// SMPP v3.4 command set.
const (
	GenericNackID         CommandID = 0x80000000
	BindReceiverID        CommandID = 0x00000001
	BindReceiverRespID    CommandID = 0x80000001
	BindTransmitterID     CommandID = 0x00000002
	BindTransmitterRespID CommandID = 0x80000002
	QuerySMID             CommandID = 0x00000003
	QuerySMRespID         CommandID = 0x80000003
	SubmitSMID            CommandID = 0x00000004
	SubmitSMRespID        CommandID = 0x80000004
	DeliverSMID           CommandID = 0x00000005
	DeliverSMRespID       CommandID = 0x80000005
	UnbindID              CommandID = 0x00000006
	UnbindRespID          CommandID = 0x80000006
	ReplaceSMID           CommandID = 0x00000007
	ReplaceSMRespID       CommandID = 0x80000007
	CancelSMID            CommandID = 0x00000008
	CancelSMRespID        CommandID = 0x80000008
	BindTransceiverID     CommandID = 0x00000009
	BindTransceiverRespID CommandID = 0x80000009
	OutbindID             CommandID = 0x0000000B
	EnquireLinkID         CommandID = 0x00000015
	EnquireLinkRespID     CommandID = 0x80000015
	SubmitMultiID         CommandID = 0x00000021
	SubmitMultiRespID     CommandID = 0x80000021
	DataSMID              CommandID = 0x00000103
	DataSMRespID          CommandID = 0x80000103
)

func (id CommandID) String() string {
	switch id {
	case GenericNackID:
		return "generic_nack"
	case BindReceiverID:
		return "bind_receiver"
	case BindReceiverRespID:
		return "bind_receiver_resp"
	case BindTransmitterID:
		return "bind_transmitter"
	case BindTransmitterRespID:
		return "bind_transmitter_resp"
	case QuerySMID:
		return "query_sm"
	case QuerySMRespID:
		return "query_sm_resp"
	case SubmitSMID:
		return "submit_sm"
	case SubmitSMRespID:
		return "submit_sm_resp"
	case DeliverSMID:
		return "deliver_sm"
	case DeliverSMRespID:
		return "deliver_sm_resp"
	case UnbindID:
		return "unbind"
	case UnbindRespID:
		return "unbind_resp"
	case ReplaceSMID:
		return "replace_sm"
	case ReplaceSMRespID:
		return "replace_sm_resp"
	case CancelSMID:
		return "cancel_sm"
	case CancelSMRespID:
		return "cancel_sm_resp"
	case BindTransceiverID:
		return "bind_transceiver"
	case BindTransceiverRespID:
		return "bind_transceiver_resp"
	case OutbindID:
		return "outbind"
	case EnquireLinkID:
		return "enquire_link"
	case EnquireLinkRespID:
		return "enquire_link_resp"
	case SubmitMultiID:
		return "submit_multi"
	case SubmitMultiRespID:
		return "submit_multi_resp"
	case DataSMID:
		return "data_sm"
	case DataSMRespID:
		return "data_sm_resp"
	}
	return "unknown"
}

// esm_class message mode bits (esm_class & 0x03).
const (
	EsmModeDefault         = 0x00
	EsmModeDatagram        = 0x01
	EsmModeForward         = 0x02
	EsmModeStoreAndForward = 0x03
)

// EsmClassReceipt marks a deliver_sm as an SMSC delivery receipt.
const EsmClassReceipt = 0x04

// registered_delivery receipt bits (registered_delivery & 0x03).
const (
	ReceiptNone      = 0x00
	ReceiptAlways    = 0x01
	ReceiptOnFailure = 0x02
)
