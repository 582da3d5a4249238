package speech

import (
	"bytes"
	"testing"
)

func TestProtocolEncoding(t *testing.T) {
	payload := []byte("test payload data")
	original := &Message{
		Header:      NewHeader(FullClientRequest, NoSequenceNumber, JSONSerialization, GzipCompression),
		PayloadSize: uint32(len(payload)),
		Payload:     payload,
	}

	encoded, err := EncodeMessage(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeMessage(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Header.MessageType != FullClientRequest {
		t.Errorf("message type = %v, want %v", decoded.Header.MessageType, FullClientRequest)
	}
	if decoded.Header.CompressionMethod != GzipCompression {
		t.Errorf("compression = %v, want gzip", decoded.Header.CompressionMethod)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Errorf("payload = %q, want %q", decoded.Payload, payload)
	}
}

func TestAudioOnlyRequestSequence(t *testing.T) {
	tests := []struct {
		name     string
		seq      int32
		last     bool
		wantSeq  int32
		wantLast bool
	}{
		{name: "middle chunk", seq: 3, wantSeq: 3},
		{name: "last chunk", seq: 4, last: true, wantSeq: -4, wantLast: true},
		{name: "last without sequence", seq: 0, last: true, wantSeq: 0, wantLast: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeMessage(CreateAudioOnlyRequest([]byte{1, 2, 3}, tt.seq, tt.last, NoCompression))
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := DecodeMessage(bytes.NewReader(encoded))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if decoded.Sequence != tt.wantSeq {
				t.Errorf("sequence = %d, want %d", decoded.Sequence, tt.wantSeq)
			}
			if decoded.IsLastPacket() != tt.wantLast {
				t.Errorf("IsLastPacket = %v, want %v", decoded.IsLastPacket(), tt.wantLast)
			}
		})
	}
}

func TestEventFrameRoundTrip(t *testing.T) {
	original := &Message{
		Header:      NewHeader(FullServerResponse, WithEvent, JSONSerialization, NoCompression),
		EventType:   EventTypeSessionFinished,
		SessionID:   "session-1",
		PayloadSize: 2,
		Payload:     []byte("{}"),
	}
	encoded, err := EncodeMessage(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeMessage(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventType != EventTypeSessionFinished || decoded.SessionID != "session-1" {
		t.Fatalf("decoded event = %d/%q", decoded.EventType, decoded.SessionID)
	}

	connected := &Message{
		Header:    NewHeader(FullServerResponse, WithEvent, JSONSerialization, NoCompression),
		EventType: EventTypeConnectionStarted,
		ConnectID: "conn-9",
	}
	encoded, _ = EncodeMessage(connected)
	decoded, err = DecodeMessage(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decode connection event: %v", err)
	}
	if decoded.ConnectID != "conn-9" || decoded.SessionID != "" {
		t.Fatalf("connection event = %+v", decoded)
	}
}

func TestErrorFrameCarriesCode(t *testing.T) {
	msg := &Message{
		Header:      NewHeader(ErrorMessage, NoSequenceNumber, JSONSerialization, NoCompression),
		ErrorCode:   45000001,
		PayloadSize: 7,
		Payload:     []byte("invalid"),
	}
	encoded, _ := EncodeMessage(msg)
	decoded, err := DecodeMessage(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.IsErrorMessage() || decoded.ErrorCode != 45000001 || string(decoded.Payload) != "invalid" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestDecodeHeaderRejectsVersion(t *testing.T) {
	if _, err := DecodeHeader([]byte{0x21, 0x10, 0x10, 0x00}); err == nil {
		t.Fatal("expected version error")
	}
	if _, err := DecodeHeader([]byte{0x11}); err == nil {
		t.Fatal("expected short header error")
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	data := []byte("Repeat: this is a test string for compression. Repeat: this is a test string for compression.")

	compressed, err := CompressPayload(data, GzipCompression)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	out, err := DecompressPayload(compressed, GzipCompression)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("round trip mismatch")
	}
	if _, err := CompressPayload(data, CustomCompression); err == nil {
		t.Fatal("expected unsupported compression error")
	}
}

func BenchmarkProtocolEncoding(b *testing.B) {
	msg := CreateAudioOnlyRequest(make([]byte, asrChunkSize), 2, false, NoCompression)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncodeMessage(msg); err != nil {
			b.Fatal(err)
		}
	}
}
