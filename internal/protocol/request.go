// Package protocol frames requests and responses between client and
// server so a receiver can determine message boundaries independent of
// TCP segmentation. The protocol is strictly request-then-response with
// one request in flight per connection.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Request operations. One byte on the wire.
const (
	OpGet    byte = 'g'
	OpSet    byte = 's'
	OpRemove byte = 'r'
	OpReset  byte = 'z'
)

// ErrProtocol marks a malformed frame. The dispatcher tears down the
// offending connection on it.
var ErrProtocol = errors.New("protocol error")

// MaxFieldBytes caps each length-prefixed field in a frame. The engine
// bounds records far below this, so a larger declared length is a
// malformed or hostile frame, and the decoder must not allocate for it.
const MaxFieldBytes = 16 << 20

// Request is one decoded client request. Key and Value may be empty;
// which fields are meaningful depends on Op.
type Request struct {
	Op    byte
	Key   string
	Value string
}

// EncodeRequest serializes a request into its wire format:
//
//	<op:uint8><key_len:uint32><val_len:uint32><key><val>
//
// Integer fields use big-endian byte order. The returned slice is
// suitable for writing directly to a TCP connection.
func EncodeRequest(op byte, key, value string) ([]byte, error) {
	if !validOp(op) {
		return nil, fmt.Errorf("%w: unknown op %q", ErrProtocol, op)
	}
	if len(key) > MaxFieldBytes || len(value) > MaxFieldBytes {
		return nil, fmt.Errorf("%w: field exceeds %d bytes", ErrProtocol, MaxFieldBytes)
	}

	keyB := []byte(key)
	valB := []byte(value)

	buf := &bytes.Buffer{}
	buf.WriteByte(op)
	if err := binary.Write(buf, binary.BigEndian, uint32(len(keyB))); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(valB))); err != nil {
		return nil, err
	}
	buf.Write(keyB)
	buf.Write(valB)

	return buf.Bytes(), nil
}

// DecodeRequest reads and decodes one request frame. It blocks until the
// full frame has been read. io.EOF is passed through untouched so the
// caller can tell a clean disconnect from a malformed frame.
func DecodeRequest(r io.Reader) (*Request, error) {
	header := make([]byte, 9)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated request header", ErrProtocol)
	}

	op := header[0]
	if !validOp(op) {
		return nil, fmt.Errorf("%w: unknown op %q", ErrProtocol, op)
	}

	keyLen := binary.BigEndian.Uint32(header[1:5])
	valLen := binary.BigEndian.Uint32(header[5:9])
	if keyLen > MaxFieldBytes || valLen > MaxFieldBytes {
		return nil, fmt.Errorf("%w: declared field of %d bytes exceeds %d", ErrProtocol, max(keyLen, valLen), MaxFieldBytes)
	}

	keyB := make([]byte, keyLen)
	if _, err := io.ReadFull(r, keyB); err != nil {
		return nil, fmt.Errorf("%w: truncated key", ErrProtocol)
	}
	valB := make([]byte, valLen)
	if _, err := io.ReadFull(r, valB); err != nil {
		return nil, fmt.Errorf("%w: truncated value", ErrProtocol)
	}

	return &Request{Op: op, Key: string(keyB), Value: string(valB)}, nil
}

func validOp(op byte) bool {
	switch op {
	case OpGet, OpSet, OpRemove, OpReset:
		return true
	}
	return false
}
