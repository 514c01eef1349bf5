package keypool

import (
	"time"

	apperrors "gemini-adapter-go/internal/errors"
)

// State is the lifecycle state of a credential.
type State string

const (
	StateActive   State = "active"
	StateCooling  State = "cooling"
	StateDisabled State = "disabled"
)

// Credential is one upstream API key together with its runtime state.
// All fields are guarded by the owning Pool's mutex.
type Credential struct {
	ID     string // short prefix of the secret, for logs and admin
	Secret string
	State  State

	ConsecutiveFailures int
	TotalRequests       int64
	TotalFailures       int64

	LastUsedAt   time.Time
	CoolingUntil time.Time
}

// Lease identifies the credential an attempt is running on. It carries a
// copy of the secret so the caller never touches pool-owned state.
type Lease struct {
	ID     string
	Secret string
}

// Snapshot is a read-only view of one credential for observability; the
// secret never leaves the pool.
type Snapshot struct {
	ID                  string    `json:"id"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalRequests       int64     `json:"total_requests"`
	TotalFailures       int64     `json:"total_failures"`
	LastUsedAt          time.Time `json:"last_used_at,omitempty"`
	CoolingUntil        time.Time `json:"cooling_until,omitempty"`
	CoolingRemainingSec int64     `json:"cooling_remaining_sec,omitempty"`
}

// CoolingConfig holds per-kind cooling periods and the failure threshold.
type CoolingConfig struct {
	MaxFailures     int
	AuthPeriod      time.Duration
	QuotaPeriod     time.Duration
	TransientPeriod time.Duration
}

// Period returns the cooling period for a failure kind.
func (c CoolingConfig) Period(kind apperrors.Kind) time.Duration {
	switch kind {
	case apperrors.KindAuthRejected:
		return c.AuthPeriod
	case apperrors.KindQuotaExceeded:
		return c.QuotaPeriod
	default:
		return c.TransientPeriod
	}
}

// ErrNoHealthyCredential is returned by Lease when no Active credential
// remains outside the exclusion set. RetryAfter hints at the soonest
// recovery among cooling credentials (zero when none are cooling).
type ErrNoHealthyCredential struct {
	RetryAfter time.Duration
}

func (e *ErrNoHealthyCredential) Error() string {
	return "no healthy credential available"
}
