package service

import (
	"time"

	"github.com/okian/gatewatch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the detection queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the attendance store shard count.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithSignatureDimension sets the expected embedding length.
func WithSignatureDimension(dim int) Option {
	return func(s *Service) {
		if dim > 0 {
			s.dimension = dim
		}
	}
}

// WithThresholds sets the review and auto-apply confidence bounds.
func WithThresholds(review, auto float64) Option {
	return func(s *Service) {
		if review > 0 && auto >= review && auto <= 1 {
			s.reviewThreshold = review
			s.autoThreshold = auto
		}
	}
}

// WithDuplicateWindow sets the per-person suppression window.
func WithDuplicateWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.duplicateWindow = d
		}
	}
}

// WithDayBoundaries sets the check-in and check-out window boundaries.
func WithDayBoundaries(morningEnd, eveningStart time.Duration) Option {
	return func(s *Service) {
		if morningEnd > 0 && eveningStart > morningEnd {
			s.morningEnd = morningEnd
			s.eveningStart = eveningStart
		}
	}
}

// WithShift sets the nominal shift and grace period.
func WithShift(start, end, grace time.Duration) Option {
	return func(s *Service) {
		if start > 0 && end > start {
			s.shiftStart = start
			s.shiftEnd = end
		}
		if grace >= 0 {
			s.gracePeriod = grace
		}
	}
}

// WithCacheTTLs sets the live cache entry lifetimes.
func WithCacheTTLs(detection, status time.Duration) Option {
	return func(s *Service) {
		if detection > 0 {
			s.detectionTTL = detection
		}
		if status > 0 {
			s.statusTTL = status
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber event buffer size.
func WithSubscriberBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.subBuffer = n
		}
	}
}

// WithPingTimeout sets the live subscriber keep-alive deadline.
func WithPingTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pingTimeout = d
		}
	}
}

// WithCameras registers the camera ids allowed to post detections.
func WithCameras(ids []string) Option {
	return func(s *Service) {
		for _, id := range ids {
			s.cameras[id] = struct{}{}
		}
	}
}

// WithHRSync enables pushing finalized records to the HR endpoint.
func WithHRSync(endpoint, token string, maxAttempts int, initialDelay, maxDelay time.Duration) Option {
	return func(s *Service) {
		s.hrEndpoint = endpoint
		s.hrToken = token
		if maxAttempts > 0 {
			s.syncAttempts = maxAttempts
		}
		if initialDelay > 0 {
			s.syncInitial = initialDelay
		}
		if maxDelay > 0 {
			s.syncMaxDelay = maxDelay
		}
	}
}

// WithSweepTime sets the clock offset from midnight UTC at which the
// previous day's pending records are finalized.
func WithSweepTime(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepTime = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
