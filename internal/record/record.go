package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Kind discriminates the two command variants stored in the log.
type Kind uint8

const (
	KindSet    Kind = 1
	KindRemove Kind = 2
)

// Record is one serialized command. Set records carry a key and a value;
// Remove records are tombstones and carry only a key. Empty keys and
// values are legal, so the kind byte (not a zero value size) marks a
// tombstone.
type Record struct {
	CRC     uint32 // Checksum of kind + key + value
	Kind    Kind
	KeySize uint32 // Length of Key in bytes
	ValSize uint32 // Length of Value in bytes
	Key     []byte
	Value   []byte
}

// CRC (4) + Kind (1) + KeySize (4) + ValSize (4)
const HeaderSize = 13

// ErrInvalidRecord marks bytes that do not form a well-formed record:
// an unknown kind, a tombstone carrying value bytes, or a checksum
// mismatch over fully-present bytes.
var ErrInvalidRecord = errors.New("invalid record")

// ErrTruncatedRecord marks a record whose declared extent runs past the
// end of the input. It wraps ErrInvalidRecord. Only this shape can be
// left by a crash mid-append; everything else is content corruption.
var ErrTruncatedRecord = fmt.Errorf("%w: truncated record", ErrInvalidRecord)

func NewSet(key, value string) Record {
	keyBytes := []byte(key)
	valBytes := []byte(value)

	return Record{
		CRC:     Checksum(KindSet, keyBytes, valBytes),
		Kind:    KindSet,
		KeySize: uint32(len(keyBytes)),
		ValSize: uint32(len(valBytes)),
		Key:     keyBytes,
		Value:   valBytes,
	}
}

func NewRemove(key string) Record {
	keyBytes := []byte(key)

	return Record{
		CRC:     Checksum(KindRemove, keyBytes, nil),
		Kind:    KindRemove,
		KeySize: uint32(len(keyBytes)),
		Key:     keyBytes,
	}
}

// Size returns the encoded length of the record in bytes.
func (r *Record) Size() int64 {
	return int64(HeaderSize + r.KeySize + r.ValSize)
}

// Encode serializes the record into its on-disk form. All integer fields
// use little-endian byte order.
func Encode(r *Record) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.Grow(int(r.Size()))

	if err := binary.Write(buf, binary.LittleEndian, r.CRC); err != nil {
		return nil, err
	}
	if err := buf.WriteByte(byte(r.Kind)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, r.KeySize); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, r.ValSize); err != nil {
		return nil, err
	}
	if _, err := buf.Write(r.Key); err != nil {
		return nil, err
	}
	if _, err := buf.Write(r.Value); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses exactly one record from data and verifies its checksum.
func Decode(data []byte) (*Record, error) {
	return ReadFrom(bytes.NewReader(data))
}

// ReadFrom reads one record from a stream. It returns io.EOF when the
// stream is exhausted at a record boundary, ErrTruncatedRecord when the
// input ends inside the record's declared extent, and ErrInvalidRecord
// when fully-present bytes do not form a well-formed record.
func ReadFrom(rd io.Reader) (*Record, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(rd, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: partial header", ErrTruncatedRecord)
	}

	r := &Record{
		CRC:     binary.LittleEndian.Uint32(header[0:4]),
		Kind:    Kind(header[4]),
		KeySize: binary.LittleEndian.Uint32(header[5:9]),
		ValSize: binary.LittleEndian.Uint32(header[9:13]),
	}

	if r.Kind != KindSet && r.Kind != KindRemove {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidRecord, r.Kind)
	}
	if r.Kind == KindRemove && r.ValSize != 0 {
		return nil, fmt.Errorf("%w: tombstone with value bytes", ErrInvalidRecord)
	}

	r.Key = make([]byte, r.KeySize)
	if _, err := io.ReadFull(rd, r.Key); err != nil {
		return nil, fmt.Errorf("%w: partial key", ErrTruncatedRecord)
	}

	r.Value = make([]byte, r.ValSize)
	if _, err := io.ReadFull(rd, r.Value); err != nil {
		return nil, fmt.Errorf("%w: partial value", ErrTruncatedRecord)
	}

	if !ValidateChecksum(r) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidRecord)
	}

	return r, nil
}
