package constants

import "time"

// Upstream HTTP transport tuning.
const (
	DefaultDialTimeout           = 10 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultExpectContinueTimeout = 1 * time.Second

	MaxIdleConns        = 100
	MaxIdleConnsPerHost = 10
)

// SSE scanning buffers; upstream chunks can carry large inline payloads.
const (
	SSEScanInitialBuffer = 64 * 1024
	SSEScanMaxBuffer     = 4 * 1024 * 1024
)

// Server lifecycle.
const (
	ServerShutdownTimeout = 10 * time.Second
)
