package auth

import (
	"errors"
	"sync"
	"time"

	"payment-tracker/internal/models"
)

const (
	// CaptchaThreshold is the failure count from which a challenge must be answered.
	CaptchaThreshold = 3
	// MaxFailures is the failure count at which further attempts are blocked.
	MaxFailures = 5
)

var (
	ErrCredentialsRequired = models.NewValidationError("login and password are required")
	ErrInvalidCredentials  = errors.New("invalid login or password")
	ErrCaptchaRequired     = models.NewValidationError("captcha answer is required")
	ErrCaptchaMismatch     = errors.New("captcha answer is incorrect")
	ErrLocked              = errors.New("too many failed attempts, try again later")
)

// Status describes the login state of one client.
type Status struct {
	Failures   int           `json:"failures"`
	Captcha    string        `json:"captcha,omitempty"`
	Locked     bool          `json:"locked"`
	RetryAfter time.Duration `json:"-"`
}

// CaptchaRequired reports whether the next attempt must carry a challenge answer.
func (s Status) CaptchaRequired() bool {
	return s.Captcha != ""
}

type attempt struct {
	failures  int
	challenge string
	lastSeen  time.Time
	lockedAt  time.Time
}

// GuardConfig holds login guard configuration.
type GuardConfig struct {
	Lockout         time.Duration
	CleanupInterval time.Duration
}

// DefaultGuardConfig returns sensible defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Lockout:         15 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Guard counts failed logins per client in memory and decides when a
// CAPTCHA is required and when the client is locked out.
type Guard struct {
	mu           sync.Mutex
	attempts     map[string]*attempt
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	lockout         time.Duration
	cleanupInterval time.Duration

	now       func() time.Time
	challenge func() (string, error)
}

// NewGuard creates a guard and starts its cleanup goroutine.
func NewGuard(config GuardConfig) *Guard {
	def := DefaultGuardConfig()
	if config.Lockout <= 0 {
		config.Lockout = def.Lockout
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	g := &Guard{
		attempts:        make(map[string]*attempt),
		stopCleanup:     make(chan struct{}),
		lockout:         config.Lockout,
		cleanupInterval: config.CleanupInterval,
		now:             time.Now,
		challenge:       NewChallenge,
	}
	go g.startCleanup()
	return g
}

// Admit decides whether a login attempt from key may be checked against the
// store. A missing answer is rejected without counting. A wrong answer counts
// as a failure and replaces the challenge.
func (g *Guard) Admit(key, answer string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.attempts[key]
	if !ok {
		return Status{}, nil
	}
	now := g.now()
	if a.failures >= MaxFailures {
		if now.Sub(a.lockedAt) >= g.lockout {
			delete(g.attempts, key)
			return Status{}, nil
		}
		return g.status(a, now), ErrLocked
	}
	if a.failures >= CaptchaThreshold {
		if answer == "" {
			return g.status(a, now), ErrCaptchaRequired
		}
		if answer != a.challenge {
			if err := g.fail(a, now); err != nil {
				return g.status(a, now), err
			}
			if a.failures >= MaxFailures {
				return g.status(a, now), ErrLocked
			}
			return g.status(a, now), ErrCaptchaMismatch
		}
	}
	return g.status(a, now), nil
}

// Fail records a failed credential check.
func (g *Guard) Fail(key string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.attempts[key]
	if !ok {
		a = &attempt{}
		g.attempts[key] = a
	}
	now := g.now()
	err := g.fail(a, now)
	return g.status(a, now), err
}

// Succeed forgets every failure recorded for key.
func (g *Guard) Succeed(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attempts, key)
}

// Status returns the current state for key without changing it.
func (g *Guard) Status(key string) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.attempts[key]
	if !ok {
		return Status{}
	}
	return g.status(a, g.now())
}

// Refresh issues a new challenge when one is required.
func (g *Guard) Refresh(key string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.attempts[key]
	if !ok {
		return Status{}, nil
	}
	now := g.now()
	if a.failures >= CaptchaThreshold && a.failures < MaxFailures {
		c, err := g.challenge()
		if err != nil {
			return g.status(a, now), err
		}
		a.challenge = c
	}
	return g.status(a, now), nil
}

// must hold g.mu
func (g *Guard) fail(a *attempt, now time.Time) error {
	a.failures++
	a.lastSeen = now
	switch {
	case a.failures >= MaxFailures:
		a.lockedAt = now
		a.challenge = ""
	case a.failures >= CaptchaThreshold:
		c, err := g.challenge()
		if err != nil {
			return err
		}
		a.challenge = c
	}
	return nil
}

func (g *Guard) status(a *attempt, now time.Time) Status {
	s := Status{Failures: a.failures}
	if a.failures >= MaxFailures {
		s.Locked = true
		if left := g.lockout - now.Sub(a.lockedAt); left > 0 {
			s.RetryAfter = left
		}
		return s
	}
	if a.failures >= CaptchaThreshold {
		s.Captcha = a.challenge
	}
	return s
}

func (g *Guard) startCleanup() {
	ticker := time.NewTicker(g.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.cleanupStaleEntries()
		case <-g.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops clients idle for longer than the lockout window.
func (g *Guard) cleanupStaleEntries() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.lockout)
	for key, a := range g.attempts {
		if a.lastSeen.Before(cutoff) {
			delete(g.attempts, key)
		}
	}
}

// Tracked returns the number of clients with recorded failures.
func (g *Guard) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.attempts)
}

// Stop ends the cleanup goroutine.
func (g *Guard) Stop() {
	g.shutdownOnce.Do(func() {
		close(g.stopCleanup)
	})
}
