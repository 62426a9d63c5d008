package speech

import (
	"bytes"
	"compress/gzip"
	"testing"
)

func TestHeaderEncodeDecode(t *testing.T) {
	h := NewHeader(FullServerResponse, WithEvent, JSONSerialization, GzipCompression)
	encoded := h.Encode()
	if len(encoded) != 4 {
		t.Fatalf("expected 4 byte header, got %d", len(encoded))
	}
	if encoded[0] != 0x11 || encoded[1] != 0x94 || encoded[2] != 0x11 {
		t.Fatalf("unexpected header bytes % x", encoded)
	}

	decoded, err := DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeHeader err: %v", err)
	}
	if *decoded != h {
		t.Fatalf("decoded header %+v != %+v", *decoded, h)
	}
}

func TestDecodeHeaderRejectsBadInput(t *testing.T) {
	if _, err := DecodeHeader([]byte{0x11}); err == nil {
		t.Fatal("expected error for short header")
	}
	if _, err := DecodeHeader([]byte{0x21, 0x10, 0x10, 0x00}); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestEventMessageLayout(t *testing.T) {
	msg := &Message{
		Header:    NewHeader(FullServerResponse, WithEvent, JSONSerialization, NoCompression),
		EventType: EventTypeSessionFinished,
		SessionID: "s-1",
		Payload:   []byte(`{}`),
	}

	data, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage err: %v", err)
	}
	// header(4) + event(4) + session size(4) + "s-1"(3) + payload size(4) + payload(2)
	if len(data) != 21 {
		t.Fatalf("unexpected frame length %d", len(data))
	}

	decoded, err := DecodeMessage(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeMessage err: %v", err)
	}
	if decoded.EventType != EventTypeSessionFinished || decoded.SessionID != "s-1" || string(decoded.Payload) != "{}" {
		t.Fatalf("unexpected decoded message %+v", decoded)
	}
}

func TestErrorMessageCarriesCode(t *testing.T) {
	msg := &Message{
		Header:    NewHeader(ErrorMessage, NoSequenceNumber, JSONSerialization, NoCompression),
		ErrorCode: 45000001,
		Payload:   []byte(`{"error":"bad speaker"}`),
	}
	data, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage err: %v", err)
	}

	decoded, err := DecodeMessage(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeMessage err: %v", err)
	}
	if decoded.ErrorCode != 45000001 {
		t.Fatalf("unexpected error code %d", decoded.ErrorCode)
	}
}

func TestIsLastPacket(t *testing.T) {
	cases := map[MessageFlags]bool{
		NoSequenceNumber:       false,
		PositiveSequenceNumber: false,
		LastPacketNoSequence:   true,
		NegativeSequenceNumber: true,
	}
	for flags, want := range cases {
		msg := &Message{Header: NewHeader(AudioOnlyServerResponse, flags, NoSerialization, NoCompression)}
		if got := msg.IsLastPacket(); got != want {
			t.Errorf("IsLastPacket(flags=%04b) = %v, want %v", flags, got, want)
		}
	}
}

func TestDecompressPayload(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("audio"))
	_ = zw.Close()

	out, err := DecompressPayload(buf.Bytes(), GzipCompression)
	if err != nil || string(out) != "audio" {
		t.Fatalf("DecompressPayload = %q, %v", out, err)
	}

	if _, err := DecompressPayload([]byte("x"), CompressionMethod(0b0111)); err == nil {
		t.Fatal("expected error for unsupported method")
	}
}
