package yahoo

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/putscan/internal/metrics"
)

// State is the lifecycle position of a Session
type State int

const (
	StateUninitialized State = iota // no handshake attempted or succeeded yet
	StateValid                      // credential held and younger than the TTL
	StateExpired                    // credential aged out or invalidated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Credential is an immutable cookie and crumb pair. Version increases by
// one with every successful handshake and identifies the credential in
// Invalidate.
type Credential struct {
	Cookie     string
	Crumb      string
	AcquiredAt time.Time
	Version    uint64
}

// Authenticator performs the two handshake steps
type Authenticator interface {
	FetchCookie(ctx context.Context) (string, error)
	FetchCrumb(ctx context.Context, cookie string) (string, error)
}

// Session owns the single shared provider credential. The credential is
// acquired lazily, reused while fresh and replaced as a whole. Concurrent
// callers that find it missing or stale wait for one handshake instead of
// starting their own.
type Session struct {
	mu      sync.Mutex
	auth    Authenticator
	ttl     time.Duration
	now     func() time.Time
	cred    *Credential
	version uint64
	metrics *metrics.Registry

	// handshakeTimeout bounds the time the lock is held for one handshake;
	// callers queued behind a dead provider wait at most this long each.
	handshakeTimeout time.Duration
}

// SessionOption customises a Session
type SessionOption func(*Session)

// WithHandshakeTimeout caps one cookie and crumb handshake at d.
func WithHandshakeTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.handshakeTimeout = d }
}

// NewSession creates a session with the given freshness window
func NewSession(auth Authenticator, ttl time.Duration, reg *metrics.Registry, opts ...SessionOption) *Session {
	s := &Session{
		auth:    auth,
		ttl:     ttl,
		now:     time.Now,
		metrics: reg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire returns the held credential while it is fresh, otherwise runs the
// cookie and crumb handshake and stores the result. A failed handshake
// leaves no usable credential behind.
func (s *Session) Acquire(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred != nil && s.now().Sub(s.cred.AcquiredAt) < s.ttl {
		return *s.cred, nil
	}
	s.cred = nil

	cred, err := s.handshake(ctx)
	s.metrics.ObserveHandshake(err)
	if err != nil {
		log.Warn().Err(err).Msg("provider session handshake failed")
		return Credential{}, err
	}

	s.version++
	cred.Version = s.version
	s.cred = &cred

	log.Debug().Uint64("version", cred.Version).Msg("provider session acquired")
	return cred, nil
}

func (s *Session) handshake(ctx context.Context) (Credential, error) {
	if s.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.handshakeTimeout)
		defer cancel()
	}

	cookie, err := s.auth.FetchCookie(ctx)
	if err != nil {
		return Credential{}, err
	}
	if cookie == "" {
		return Credential{}, &ProviderError{Op: "cookie", Err: ErrNoCookie}
	}

	crumb, err := s.auth.FetchCrumb(ctx, cookie)
	if err != nil {
		return Credential{}, err
	}
	if crumb == "" {
		return Credential{}, &ProviderError{Op: "crumb", Err: ErrEmptyCrumb}
	}

	return Credential{Cookie: cookie, Crumb: crumb, AcquiredAt: s.now()}, nil
}

// Invalidate discards the held credential if it is still the one identified
// by stale, forcing the next Acquire to handshake. A caller holding an older
// credential cannot discard a newer one another caller already obtained.
func (s *Session) Invalidate(stale Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred != nil && s.cred.Version == stale.Version {
		log.Debug().Uint64("version", stale.Version).Msg("provider session invalidated")
		s.cred = nil
	}
}

// State reports the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.cred != nil && s.now().Sub(s.cred.AcquiredAt) < s.ttl:
		return StateValid
	case s.cred == nil && s.version == 0:
		return StateUninitialized
	default:
		return StateExpired
	}
}
