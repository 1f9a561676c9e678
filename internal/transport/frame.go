// Package transport implements the campaign driver's framed socket
// transport (component A): a 4-byte big-endian length-prefixed message
// framing over stream sockets, with blocking send/receive.
//
// Adapted from the teacher's internal/protocol/frame.go (the
// io.ReadFull read-loop and encoding/binary marshal pattern), simplified
// to the wire layout spec.md §4.A and §6 actually call for — a bare
// 4-byte length header followed by the UTF-8 payload, not the teacher's
// own 110-byte AOCS header, which belongs to a different protocol and
// domain. Confirmed against original_source/resources/network.py's
// send_msg/recv_msg (struct.pack('>I', len(msg))).
package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/byuccl/coast/internal/model"
)

// MaxPayloadBytes bounds a single frame's payload so a corrupted or
// malicious length header cannot force an unbounded allocation.
const MaxPayloadBytes = 64 << 20 // 64 MiB

// Send writes one length-prefixed frame to w: a 4-byte big-endian
// length header followed by exactly that many payload bytes.
func Send(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("transport: write length header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("transport: write payload: %w", err)
	}
	return nil
}

// SendString is a convenience wrapper for the agent protocol's
// textual command/argument/response vocabulary (component C), which
// frames UTF-8 strings rather than raw bytes.
func SendString(w io.Writer, s string) error {
	return Send(w, []byte(s))
}

// Recv reads one length-prefixed frame from r, looping until the
// declared length is fully read (partial reads are concatenated by
// io.ReadFull). A read returning zero bytes or a socket error while
// reading the length header, or a short read while reading the
// payload, fails with ErrConnectionLost.
func Recv(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("transport: %w: %v", model.ErrConnectionLost, err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxPayloadBytes {
		return nil, fmt.Errorf("transport: declared frame length %d exceeds %d byte limit", length, MaxPayloadBytes)
	}
	if length == 0 {
		return []byte{}, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("transport: %w: %v", model.ErrConnectionLost, err)
	}
	return payload, nil
}

// RecvString is Recv plus a UTF-8 conversion, for the agent's
// one-command/one-response-per-frame vocabulary.
func RecvString(r io.Reader) (string, error) {
	b, err := Recv(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
