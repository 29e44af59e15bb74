package record

import "hash/crc32"

// Checksum computes the CRC32 checksum (IEEE polynomial) over the record
// kind, key and value.
func Checksum(kind Kind, key, value []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write([]byte{byte(kind)})
	h.Write(key)
	h.Write(value)
	return h.Sum32()
}

// ValidateChecksum reports whether the record's stored CRC matches the
// checksum computed over its contents.
func ValidateChecksum(r *Record) bool {
	return Checksum(r.Kind, r.Key, r.Value) == r.CRC
}
