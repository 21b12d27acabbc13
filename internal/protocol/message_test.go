package protocol

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := &Message{
		Action:  ActionHeartbeat,
		ID:      "abc123",
		Channel: "",
	}

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Action != ActionHeartbeat || got.ID != "abc123" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeConnectedWithDetails(t *testing.T) {
	raw := `{"action":2,"connectionDetails":{"connectionStateTtl":120000,"connectionId":"xyz"}}`
	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Action != ActionConnected {
		t.Fatalf("expected ActionConnected, got %v", msg.Action)
	}
	if msg.ConnectionDetails == nil || msg.ConnectionDetails.ConnectionStateTTLMs != 120000 {
		t.Fatalf("expected connectionStateTtl 120000, got %+v", msg.ConnectionDetails)
	}
}

func TestDecodeErrorFrame(t *testing.T) {
	raw := `{"action":7,"error":{"message":"boom","statusCode":500,"code":50000,"nonfatal":false}}`
	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Action != ActionError {
		t.Fatalf("expected ActionError, got %v", msg.Action)
	}
	if msg.Error == nil || msg.Error.Code != 50000 {
		t.Fatalf("expected error code 50000, got %+v", msg.Error)
	}
}

func TestActionStringUnknown(t *testing.T) {
	a := Action(999)
	if a.String() != "UNKNOWN(999)" {
		t.Fatalf("expected UNKNOWN(999), got %q", a.String())
	}
}
