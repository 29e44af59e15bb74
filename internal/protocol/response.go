package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Response statuses. One byte on the wire, followed by a length-prefixed
// payload: the value for StatusValue, the error message for StatusErr,
// empty for StatusOK.
const (
	StatusOK    byte = 0 // success, no value (set, remove, reset, get miss)
	StatusValue byte = 1 // success with a value (get hit)
	StatusErr   byte = 2 // failure, payload is the message
)

// Response is one decoded server reply.
type Response struct {
	Status  byte
	Payload string
}

// EncodeResponse serializes a response into its wire format:
//
//	<status:uint8><payload_len:uint32><payload>
func EncodeResponse(status byte, payload string) ([]byte, error) {
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %d", ErrProtocol, status)
	}
	if len(payload) > MaxFieldBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrProtocol, MaxFieldBytes)
	}

	payloadB := []byte(payload)

	buf := &bytes.Buffer{}
	buf.WriteByte(status)
	if err := binary.Write(buf, binary.BigEndian, uint32(len(payloadB))); err != nil {
		return nil, err
	}
	buf.Write(payloadB)

	return buf.Bytes(), nil
}

// DecodeResponse reads and decodes one response frame, blocking until the
// full frame has been read.
func DecodeResponse(r io.Reader) (*Response, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: truncated response header", ErrProtocol)
	}

	status := header[0]
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %d", ErrProtocol, status)
	}

	payloadLen := binary.BigEndian.Uint32(header[1:5])
	if payloadLen > MaxFieldBytes {
		return nil, fmt.Errorf("%w: declared payload of %d bytes exceeds %d", ErrProtocol, payloadLen, MaxFieldBytes)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrProtocol)
	}

	return &Response{Status: status, Payload: string(payload)}, nil
}

func validStatus(status byte) bool {
	switch status {
	case StatusOK, StatusValue, StatusErr:
		return true
	}
	return false
}
