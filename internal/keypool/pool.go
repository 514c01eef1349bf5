package keypool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "gemini-adapter-go/internal/errors"
	"gemini-adapter-go/internal/logging"
	log "github.com/sirupsen/logrus"
)

// Pool owns the credential set. Every mutation happens under a single
// mutex; critical sections are field updates only and never include
// upstream I/O.
type Pool struct {
	mu      sync.Mutex
	creds   map[string]*Credential
	cooling CoolingConfig
	now     func() time.Time
}

// New builds a pool from raw secrets. Duplicate secrets collapse to one
// credential.
func New(secrets []string, cooling CoolingConfig) *Pool {
	if cooling.MaxFailures <= 0 {
		cooling.MaxFailures = 3
	}
	p := &Pool{
		creds:   make(map[string]*Credential),
		cooling: cooling,
		now:     time.Now,
	}
	for _, secret := range secrets {
		p.addLocked(secret)
	}
	return p
}

func credID(secret string) string {
	if len(secret) <= 8 {
		return secret
	}
	return secret[:8]
}

func (p *Pool) addLocked(secret string) *Credential {
	id := credID(secret)
	if existing, ok := p.creds[id]; ok {
		return existing
	}
	c := &Credential{ID: id, Secret: secret, State: StateActive}
	p.creds[id] = c
	return c
}

// sweepLocked recovers any credential whose cooling period elapsed.
func (p *Pool) sweepLocked(now time.Time) {
	for _, c := range p.creds {
		if c.State == StateCooling && !c.CoolingUntil.After(now) {
			c.State = StateActive
			c.CoolingUntil = time.Time{}
			c.ConsecutiveFailures = 0
			log.WithField("credential", c.ID).Info("credential recovered from cooling")
		}
	}
}

// Lease returns an Active credential outside the exclusion set, choosing
// the least-recently-used and breaking ties by id. It stamps LastUsedAt
// and increments TotalRequests before returning.
func (p *Pool) Lease(exclude map[string]struct{}) (Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.sweepLocked(now)

	var pick *Credential
	for _, c := range p.creds {
		if c.State != StateActive {
			continue
		}
		if _, skip := exclude[c.ID]; skip {
			continue
		}
		if pick == nil ||
			c.LastUsedAt.Before(pick.LastUsedAt) ||
			(c.LastUsedAt.Equal(pick.LastUsedAt) && c.ID < pick.ID) {
			pick = c
		}
	}
	if pick == nil {
		return Lease{}, &ErrNoHealthyCredential{RetryAfter: p.soonestRecoveryLocked(now)}
	}

	pick.LastUsedAt = now
	pick.TotalRequests++
	return Lease{ID: pick.ID, Secret: pick.Secret}, nil
}

func (p *Pool) soonestRecoveryLocked(now time.Time) time.Duration {
	var soonest time.Duration
	for _, c := range p.creds {
		if c.State != StateCooling {
			continue
		}
		d := c.CoolingUntil.Sub(now)
		if d < 0 {
			d = 0
		}
		if soonest == 0 || d < soonest {
			soonest = d
		}
	}
	return soonest
}

// ReportSuccess resets the consecutive failure count after a served
// request.
func (p *Pool) ReportSuccess(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.creds[id]; ok {
		c.ConsecutiveFailures = 0
	}
}

// ReportFailure records a classified failure. Auth and quota failures
// cool immediately; transient failures cool after MaxFailures in a row.
// Disabled credentials keep their counters but never change state here.
func (p *Pool) ReportFailure(id string, kind apperrors.Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.creds[id]
	if !ok {
		return
	}
	c.ConsecutiveFailures++
	c.TotalFailures++

	if c.State == StateDisabled {
		return
	}

	immediate := kind == apperrors.KindAuthRejected || kind == apperrors.KindQuotaExceeded
	if !immediate && c.ConsecutiveFailures < p.cooling.MaxFailures {
		return
	}

	period := p.cooling.Period(kind)
	c.State = StateCooling
	c.CoolingUntil = p.now().Add(period)
	log.WithFields(log.Fields{
		"credential":           c.ID,
		"kind":                 kind.String(),
		"consecutive_failures": c.ConsecutiveFailures,
		"cooling_s":            int(period.Seconds()),
	}).Warn("credential cooling")
}

// Add registers a new secret (admin surface). Returns the new id.
func (p *Pool) Add(secret string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := credID(secret)
	if _, exists := p.creds[id]; exists {
		return "", fmt.Errorf("credential %s already present", logging.KeyPrefix(secret))
	}
	c := p.addLocked(secret)
	return c.ID, nil
}

// Remove deletes a credential by id (admin surface).
func (p *Pool) Remove(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.creds[id]; !ok {
		return fmt.Errorf("unknown credential %s", id)
	}
	delete(p.creds, id)
	return nil
}

// Enable re-activates a disabled credential (admin surface).
func (p *Pool) Enable(id string) error {
	return p.mutate(id, func(c *Credential) {
		c.State = StateActive
		c.CoolingUntil = time.Time{}
		c.ConsecutiveFailures = 0
	})
}

// Disable removes a credential from selection until re-enabled. Only the
// admin surface sets this state.
func (p *Pool) Disable(id string) error {
	return p.mutate(id, func(c *Credential) {
		c.State = StateDisabled
		c.CoolingUntil = time.Time{}
	})
}

// Reset transitions a credential back to Active with counters preserved
// but failures and cooling cleared (admin surface).
func (p *Pool) Reset(id string) error {
	return p.mutate(id, func(c *Credential) {
		c.State = StateActive
		c.ConsecutiveFailures = 0
		c.CoolingUntil = time.Time{}
	})
}

func (p *Pool) mutate(id string, fn func(*Credential)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.creds[id]
	if !ok {
		return fmt.Errorf("unknown credential %s", id)
	}
	fn(c)
	return nil
}

// Snapshot returns observability views sorted by id.
func (p *Pool) Snapshot() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.sweepLocked(now)

	out := make([]Snapshot, 0, len(p.creds))
	for _, c := range p.creds {
		s := Snapshot{
			ID:                  c.ID,
			State:               c.State,
			ConsecutiveFailures: c.ConsecutiveFailures,
			TotalRequests:       c.TotalRequests,
			TotalFailures:       c.TotalFailures,
			LastUsedAt:          c.LastUsedAt,
			CoolingUntil:        c.CoolingUntil,
		}
		if c.State == StateCooling {
			if rem := c.CoolingUntil.Sub(now); rem > 0 {
				s.CoolingRemainingSec = int64(rem.Seconds())
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counts reports the pool composition for health checks.
func (p *Pool) Counts() (active, cooling, disabled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweepLocked(p.now())
	for _, c := range p.creds {
		switch c.State {
		case StateActive:
			active++
		case StateCooling:
			cooling++
		case StateDisabled:
			disabled++
		}
	}
	return
}

// SetClock overrides the time source; tests only.
func (p *Pool) SetClock(now func() time.Time) { p.now = now }
