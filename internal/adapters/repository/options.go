// Package repository defines the persisted-state store interfaces and errors.
package repository

// SignatureOption applies a configuration option to the MemSignatureStore.
type SignatureOption func(*MemSignatureStore)

// WithDimension sets the expected signature vector length.
func WithDimension(d int) SignatureOption {
	return func(s *MemSignatureStore) {
		if d > 0 {
			s.dimension = d
		}
	}
}

// AttendanceOption applies a configuration option to the MemAttendanceStore.
type AttendanceOption func(*MemAttendanceStore)

// WithShardCount sets the number of shards in the attendance store.
func WithShardCount(n int) AttendanceOption {
	return func(s *MemAttendanceStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}
