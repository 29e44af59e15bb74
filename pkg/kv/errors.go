package kv

import "errors"

// ErrKeyNotFound is returned by Remove when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// ErrCorruption indicates that log bytes failed to deserialize into a
// well-formed command. An engine refuses to open over corrupted data
// rather than risk silent loss.
var ErrCorruption = errors.New("log corruption")
