// Package api declares HTTP contracts and route registration helpers.
package api

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithCameraRateLimit enables per-camera ingest rate limiting.
func WithCameraRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 && burst > 0 {
			s.detectionsHandler.limiter = newCameraLimiter(perSecond, burst)
		}
	}
}
