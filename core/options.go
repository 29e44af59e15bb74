package core

// Defaults for the rotation and compaction policies. Rotation triggers
// when the active segment grows past SegmentSize; compaction runs on the
// rotation call stack once the dead-byte counter passes
// CompactionThreshold.
const (
	DefaultSegmentSize         = 4_000_000
	DefaultCompactionThreshold = 4_000_000
)

type options struct {
	segmentSize         int64
	compactionThreshold int64
}

type Option func(*options)

// WithSegmentSize sets the active segment size at which rotation happens.
func WithSegmentSize(bytes int64) Option {
	return func(o *options) {
		o.segmentSize = bytes
	}
}

// WithCompactionThreshold sets the uncompacted-bytes level at which a
// rotation also triggers compaction of the sealed segments.
func WithCompactionThreshold(bytes int64) Option {
	return func(o *options) {
		o.compactionThreshold = bytes
	}
}

func defaultOptions() options {
	return options{
		segmentSize:         DefaultSegmentSize,
		compactionThreshold: DefaultCompactionThreshold,
	}
}
