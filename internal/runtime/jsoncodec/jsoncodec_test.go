package jsoncodec

import (
	"bytes"
	"strings"
	"testing"
)

type testPayload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := testPayload{ID: 42, Name: "enginectl"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out testPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if out != in {
		t.Fatalf("expected round trip to match, got %#v", out)
	}

	indented, err := MarshalIndent(in, "", "  ")
	if err != nil {
		t.Fatalf("marshal indent failed: %v", err)
	}
	if !strings.Contains(string(indented), "\n  \"id\"") {
		t.Fatalf("expected indented output, got %s", string(indented))
	}
}

func TestEncodeAndDecode(t *testing.T) {
	buf := &bytes.Buffer{}
	payload := testPayload{ID: 7, Name: "stream"}

	if err := Encode(buf, payload); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded testPayload
	if err := Decode(buf, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded != payload {
		t.Fatalf("expected decoded payload to match, got %#v", decoded)
	}
}

func TestPeekHelpers(t *testing.T) {
	raw := []byte(`{"request_id":"abc-123","is_successful":true,"status_code":204,"nested":{"content":"proxies: []"}}`)

	if got := PeekString(raw, "request_id"); got != "abc-123" {
		t.Fatalf("PeekString = %q, want abc-123", got)
	}
	if got := PeekString(raw, "nested.content"); got != "proxies: []" {
		t.Fatalf("PeekString nested = %q", got)
	}
	if got := PeekString(raw, "missing"); got != "" {
		t.Fatalf("PeekString missing = %q, want empty", got)
	}
	if !PeekBool(raw, "is_successful") {
		t.Fatal("PeekBool should report true")
	}
	if got := PeekInt(raw, "status_code"); got != 204 {
		t.Fatalf("PeekInt = %d, want 204", got)
	}
	if !Valid(raw) {
		t.Fatal("Valid should accept well-formed JSON")
	}
	if Valid([]byte("{broken")) {
		t.Fatal("Valid should reject malformed JSON")
	}
}
