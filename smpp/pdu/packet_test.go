package pdu

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

//goland:noinspection SpellCheckingInspection
var mapping = []struct {
	Packet   string
	Seq      uint32
	Status   Status
	Expected PDU
}{
	{
		Packet:   "00000010000000150000000000000007",
		Seq:      7,
		Expected: &EnquireLink{},
	},
	{
		Packet:   "00000010800000150000000000000007",
		Seq:      7,
		Expected: &EnquireLinkResp{},
	},
	{
		Packet:   "0000001000000006000000000000000D",
		Seq:      13,
		Expected: &Unbind{},
	},
	{
		Packet:   "0000001080000006000000000000000D",
		Seq:      13,
		Expected: &UnbindResp{},
	},
	{
		Packet:   "0000001080000000000000FF0000000D",
		Seq:      13,
		Status:   StatusUnknownErr,
		Expected: &GenericNack{},
	},
	{
		Packet: "0000001D0000000100000000000000016D746300707764000034000000",
		Seq:    1,
		Expected: &BindReceiver{Bind{
			SystemID:         "mtc",
			Password:         "pwd",
			InterfaceVersion: 0x34,
		}},
	},
	{
		Packet: "0000001F00000002000000000000000D757365720070617373000034000000",
		Seq:    13,
		Expected: &BindTransmitter{Bind{
			SystemID:         "user",
			Password:         "pass",
			InterfaceVersion: 0x34,
		}},
	},
	{
		Packet:   "0000001580000002000000000000000D7573657200",
		Seq:      13,
		Expected: &BindTransmitterResp{BindResp{SystemID: "user"}},
	},
	{
		Packet: "0000001F000000090000000000000005727800736563726574000034000000",
		Seq:    5,
		Expected: &BindTransceiver{Bind{
			SystemID:         "rx",
			Password:         "secret",
			InterfaceVersion: 0x34,
		}},
	},
	{
		Packet:   "00000013800000090000000000000005727800",
		Seq:      5,
		Expected: &BindTransceiverResp{BindResp{SystemID: "rx"}},
	},
	{
		Packet: "00000032000000040000000000000002000C22737263003843647374000300000000010000000B48656C6C6F20776F726C64",
		Seq:    2,
		Expected: &SubmitSM{smBody{
			SourceAddrTON:      12,
			SourceAddrNPI:      34,
			SourceAddr:         "src",
			DestAddrTON:        56,
			DestAddrNPI:        67,
			DestinationAddr:    "dst",
			ESMClass:           EsmModeStoreAndForward,
			RegisteredDelivery: ReceiptAlways,
			ShortMessage:       []byte("Hello world"),
		}},
	},
	{
		Packet:   "00000019800000040000000000000002613162326333643400",
		Seq:      2,
		Expected: &SubmitSMResp{MessageID: "a1b2c3d4"},
	},
	{
		Packet: "00000032000000050000000000000009000000313030313000000030000400000000000000000B48656C6C6F20776F726C64",
		Seq:    9,
		Expected: &DeliverSM{smBody{
			SourceAddr:      "10010",
			DestinationAddr: "0",
			ESMClass:        EsmClassReceipt,
			ShortMessage:    []byte("Hello world"),
		}},
	},
	{
		Packet:   "0000001180000005000000000000000900",
		Seq:      9,
		Expected: &DeliverSMResp{},
	},
	{
		Packet: "000000240000000B000000000000000D696E76656E746F7279006970617373776F726400",
		Seq:    13,
		Expected: &Outbind{rawPDU{Raw: []byte{
			0x69, 0x6E, 0x76, 0x65, 0x6E, 0x74, 0x6F, 0x72, 0x79, 0x00,
			0x69, 0x70, 0x61, 0x73, 0x73, 0x77, 0x6F, 0x72, 0x64, 0x00,
		}}},
	},
	{
		Packet: "0000001D00000003000000000000000D61776179000D0F416C69636500",
		Seq:    13,
		Expected: &QuerySM{rawPDU{Raw: []byte{
			0x61, 0x77, 0x61, 0x79, 0x00, 0x0D, 0x0F,
			0x41, 0x6C, 0x69, 0x63, 0x65, 0x00,
		}}},
	},
}

func TestPacket(t *testing.T) {
	for _, sample := range mapping {
		decoded, err := hex.DecodeString(sample.Packet)
		require.NoError(t, err)

		frame, err := Encode(sample.Expected, sample.Seq, sample.Status)
		require.NoError(t, err, sample.Expected)
		require.Equal(t, decoded, frame, hex.EncodeToString(frame))

		h, parsed, err := Decode(decoded)
		require.NoError(t, err, sample.Packet)
		require.NotNil(t, parsed)
		require.Equal(t, sample.Expected, parsed)
		require.Equal(t, sample.Seq, h.Seq)
		require.Equal(t, sample.Status, h.Status)
		require.Equal(t, uint32(len(decoded)), h.Length)
		require.Equal(t, sample.Expected.CommandID(), h.ID)
	}
}

func TestDecodeMalformed(t *testing.T) {
	samples := []struct {
		name   string
		packet string
	}{
		{"short frame", "00000010000000"},
		{"declared length below header size", "0000000F000000150000000000000007"},
		{"declared length above frame length", "00000011000000150000000000000007"},
		{"declared length below frame length", "00000010000000150000000000000007FF"},
		{"unknown command id", "000000100000FFFF0000000000000007"},
		{"bind body without terminator", "000000130000000100000000000000016D7463"},
		{"bind body truncated", "0000001B0000000100000000000000016D74630070776400003400"},
		{"system_id over the maximum", "0000002A0000000100000000000000016162636465666768696A6B6C6D6E6F7000707764000034000000"},
		{"submit_sm body truncated after sm_length", "00000029000000040000000000000002000C22737263003843647374000300000000010000000B4865"},
	}

	for _, sample := range samples {
		t.Run(sample.name, func(t *testing.T) {
			decoded, err := hex.DecodeString(sample.packet)
			require.NoError(t, err)

			_, _, err = Decode(decoded)
			require.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestEncodeFieldMaxima(t *testing.T) {
	longString := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = 'x'
		}
		return string(b)
	}

	// At the maximum the PDU still encodes.
	bind := &BindTransceiver{Bind{
		SystemID:     longString(15),
		Password:     longString(8),
		SystemType:   longString(12),
		AddressRange: longString(40),
	}}
	frame, err := Encode(bind, 1, StatusOK)
	require.NoError(t, err)

	_, parsed, err := Decode(frame)
	require.NoError(t, err)
	require.Equal(t, bind, parsed)

	// One octet over each maximum fails with ErrEncode.
	overs := []PDU{
		&BindTransceiver{Bind{SystemID: longString(16)}},
		&BindTransceiver{Bind{Password: longString(9)}},
		&BindTransceiver{Bind{SystemType: longString(13)}},
		&BindTransceiver{Bind{AddressRange: longString(41)}},
		&SubmitSM{smBody{ServiceType: longString(6)}},
		&SubmitSM{smBody{SourceAddr: longString(21)}},
		&SubmitSM{smBody{DestinationAddr: longString(21)}},
		&SubmitSM{smBody{ScheduleDeliveryTime: longString(17)}},
		&SubmitSM{smBody{ValidityPeriod: longString(17)}},
		&SubmitSM{smBody{ShortMessage: make([]byte, 255)}},
		&SubmitSMResp{MessageID: longString(65)},
	}
	for _, p := range overs {
		_, err := Encode(p, 1, StatusOK)
		require.ErrorIs(t, err, ErrEncode, p)
	}

	// short_message at exactly 254 octets is fine.
	sm := &SubmitSM{smBody{ShortMessage: make([]byte, 254)}}
	frame, err = Encode(sm, 3, StatusOK)
	require.NoError(t, err)
	_, parsed, err = Decode(frame)
	require.NoError(t, err)
	require.Equal(t, sm, parsed)
}

func TestStubsRoundTrip(t *testing.T) {
	stubs := []PDU{
		&QuerySM{}, &QuerySMResp{}, &CancelSM{}, &CancelSMResp{},
		&ReplaceSM{}, &ReplaceSMResp{}, &SubmitMulti{}, &SubmitMultiResp{},
		&DataSM{}, &DataSMResp{}, &Outbind{},
	}
	body := []byte{0x01, 0x02, 0x00, 0xFF, 0x7E}

	for _, p := range stubs {
		require.NoError(t, p.UnmarshalBinary(body))

		frame, err := Encode(p, 21, StatusOK)
		require.NoError(t, err)
		require.Equal(t, body, frame[HeaderSize:], p.CommandID().String())

		_, parsed, err := Decode(frame)
		require.NoError(t, err)
		require.Equal(t, p, parsed)
	}
}

func TestCommandIDString(t *testing.T) {
	require.Equal(t, "submit_sm", SubmitSMID.String())
	require.Equal(t, "generic_nack", GenericNackID.String())
	require.Equal(t, "bind_transceiver_resp", BindTransceiverRespID.String())
	require.Equal(t, "unknown", CommandID(0x12345678).String())
}
