// Package transport implements the length-prefixed framing, per-connection
// read/write goroutines, and the ack/retry sweeper the session server uses
// to exchange envelope.Envelope messages with clients over raw net.Conn.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MinFrameLength and MaxFrameLength bound the 4-byte little-endian length
// prefix per spec §6: 1 <= L <= 2^20.
const (
	MinFrameLength = 1
	MaxFrameLength = 1 << 20
)

// ErrFrameTooLarge and ErrFrameEmpty report length-prefix violations; the
// caller must close the connection on either, per spec §7.
var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum length")
	ErrFrameEmpty    = errors.New("frame length must be at least 1")
)

// ReadFrame reads one length-prefixed payload from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length < MinFrameLength {
		return nil, ErrFrameEmpty
	}
	if length > MaxFrameLength {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

// WriteFrame writes a length-prefixed payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) < MinFrameLength {
		return ErrFrameEmpty
	}
	if len(payload) > MaxFrameLength {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
