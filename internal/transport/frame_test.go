package transport

import (
	"bytes"
	"testing"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"Type":"Ping"}`)
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected %q, got %q", payload, got)
	}
}

func TestWriteFrameRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); err != ErrFrameEmpty {
		t.Fatalf("expected ErrFrameEmpty, got %v", err)
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, MaxFrameLength+1)
	if err := WriteFrame(&buf, oversized); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameRejectsOversizedLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0x20, 0x00}) // length = 1<<21 little-endian
	if _, err := ReadFrame(&buf); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	if _, err := ReadFrame(&buf); err != ErrFrameEmpty {
		t.Fatalf("expected ErrFrameEmpty, got %v", err)
	}
}
