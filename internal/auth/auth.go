// Package auth implements Session Authentication (spec §4.5): negotiation of
// basic/MD5-digest credentials with nonces, challenge/re-challenge, and
// enforcement of the stronger scheme once negotiated.
//
// Structurally grounded on the teacher's internal/bfd/auth.go: a small state
// struct (Negotiator, analogous to bfd.AuthState) verified by a pure
// function set against a credential/key store, with crypto/md5 used exactly
// as the teacher uses it for its own (unrelated) RFC 5880 MD5
// authentication -- protocol-mandated, not a security choice.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/go-omads/omads/internal/changelog"
)

// Scheme is a recognised authentication scheme (spec §4.5).
type Scheme uint8

const (
	// SchemeNone means no credentials are required.
	SchemeNone Scheme = iota

	// SchemeBasic is username:password, optionally base64-encoded.
	SchemeBasic

	// SchemeMD5 is MD5(MD5(user:password):nonce), optionally base64-encoded.
	SchemeMD5
)

// String returns the human-readable scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeNone:
		return "none"
	case SchemeBasic:
		return "basic"
	case SchemeMD5:
		return "md5"
	default:
		return "unknown"
	}
}

// strength ranks schemes so downgrade attempts can be detected (spec §4.5:
// "Downgrade prevention: once MD5 is negotiated, a later basic challenge is
// refused").
func (s Scheme) strength() int {
	switch s {
	case SchemeMD5:
		return 2
	case SchemeBasic:
		return 1
	default:
		return 0
	}
}

// Encoding is the wire encoding of credential data.
type Encoding uint8

const (
	// EncodingRaw is unencoded credential bytes.
	EncodingRaw Encoding = iota

	// EncodingB64 is base64-encoded credential bytes.
	EncodingB64
)

// Result is the outcome of verifying inbound credentials (spec §4.5).
type Result uint8

const (
	// ResultAccepted corresponds to status 212 AUTH_ACCEPTED.
	ResultAccepted Result = iota

	// ResultInvalidFirst corresponds to a first-failure 401 INVALID_CRED
	// that keeps the session open and issues a challenge.
	ResultInvalidFirst

	// ResultInvalidFinal corresponds to a second-failure that aborts the
	// session with AUTH_FAILED.
	ResultInvalidFinal

	// ResultMissing corresponds to status 407 MISSING_CRED: no credentials
	// were supplied while authentication is pending.
	ResultMissing
)

// Sentinel errors for authentication failures.
var (
	// ErrNonceUnavailable indicates MD5 is required but no nonce is cached
	// for this peer (spec §4.5: "if MD5 is required but no nonce is cached, abort").
	ErrNonceUnavailable = errors.New("auth: md5 required but no nonce cached")

	// ErrDowngradeRefused indicates a peer-issued challenge tried to
	// downgrade an already-negotiated stronger scheme.
	ErrDowngradeRefused = errors.New("auth: scheme downgrade refused")

	// ErrAuthFailed indicates the session must terminate AUTH_FAILED
	// (spec §4.5: second consecutive credential failure).
	ErrAuthFailed = errors.New("auth: authentication failed")
)

// Config configures a Negotiator (spec §6 "Session config": auth_type,
// username, password).
type Config struct {
	Scheme   Scheme
	Username string
	Password string

	LocalDevice  string
	RemoteDevice string
}

// Negotiator tracks per-session authentication state: negotiated scheme,
// failure count, and nonce persistence (spec §4.5, §3 "Nonce record").
//
// Analogous to bfd.AuthState: a small mutable struct consulted by pure
// verification functions, with the actual key/credential material supplied
// externally (here via Config and a changelog.Store instead of an
// AuthKeyStore).
type Negotiator struct {
	cfg   Config
	store changelog.Store

	// negotiated is the strongest scheme successfully used or challenged
	// for in this session. Starts at SchemeNone.
	negotiated Scheme

	// failures counts consecutive inbound credential failures this session.
	failures int

	// cleared is true once ClearNonce has fired for this session's
	// successful authentication (spec §4.5: "the in-session nonce is
	// cleared; only the next-nonce survives for future sessions").
	cleared bool
}

// NewNegotiator creates a Negotiator for one session.
func NewNegotiator(cfg Config, store changelog.Store) *Negotiator {
	return &Negotiator{cfg: cfg, store: store}
}

// nonceKey returns this negotiator's NonceStore key.
func (n *Negotiator) nonceKey() changelog.NonceKey {
	return changelog.NonceKey{LocalDevice: n.cfg.LocalDevice, RemoteDevice: n.cfg.RemoteDevice}
}

// GenerateNextNonce creates a fresh random nonce to offer the peer via a
// Chal's next-nonce element (spec §4.5 "Next-nonce discipline"), grounded
// on bfd.NewAuthState's crypto/rand initialization pattern.
func GenerateNextNonce() ([]byte, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate next nonce: %w", err)
	}
	return buf, nil
}

// IssueChallenge stores nextNonce as the nonce to use for this peer's next
// authentication attempt (spec §4.5 "Next-nonce discipline": "any
// successful response may carry a Chal with a fresh next-nonce; it
// supersedes the stored nonce").
func (n *Negotiator) IssueChallenge(ctx context.Context, nextNonce []byte) error {
	if err := n.store.SaveNonce(ctx, changelog.NonceRecord{Key: n.nonceKey(), Nonce: nextNonce}); err != nil {
		return fmt.Errorf("issue challenge: %w", err)
	}
	return nil
}

// VerifyInbound validates header credentials supplied by the peer (spec
// §4.5 "Inbound header credentials").
//
// scheme/enc/data describe what the peer sent; an empty scheme (SchemeNone)
// with required != SchemeNone yields ResultMissing (407 MISSING_CRED).
func (n *Negotiator) VerifyInbound(ctx context.Context, scheme Scheme, enc Encoding, data []byte) (Result, error) {
	required := n.cfg.Scheme

	if required == SchemeNone {
		return ResultAccepted, nil
	}

	if scheme == SchemeNone {
		return ResultMissing, nil
	}

	var ok bool
	switch scheme {
	case SchemeBasic:
		ok = VerifyBasic(data, enc, n.cfg.Username, n.cfg.Password)
	case SchemeMD5:
		nonceRec, err := n.store.LoadNonce(ctx, n.nonceKey())
		if err != nil {
			// No nonce cached for this peer: treat as a credential failure,
			// not a session-level nonce-unavailable abort -- that abort is
			// reserved for the peer-issued-challenge path (spec §4.5).
			ok = false
		} else {
			ok = VerifyMD5(data, enc, n.cfg.Username, n.cfg.Password, nonceRec.Nonce)
		}
	default:
		ok = false
	}

	if ok {
		n.negotiated = maxScheme(n.negotiated, scheme)
		n.failures = 0

		if n.negotiated.strength() >= SchemeMD5.strength() && !n.cleared {
			if err := n.store.ClearNonce(ctx, n.nonceKey()); err != nil {
				return ResultAccepted, fmt.Errorf("clear nonce on auth success: %w", err)
			}
			n.cleared = true
		}

		return ResultAccepted, nil
	}

	n.failures++
	if n.failures >= 2 {
		return ResultInvalidFinal, ErrAuthFailed
	}
	return ResultInvalidFirst, nil
}

// HandlePeerChallenge processes a peer-issued Challenge (status 401/407
// with Chal, spec §4.5). offered is the scheme the peer is challenging for;
// nonce is the nonce supplied with the challenge (MD5 only, may be nil for
// basic).
//
// On success the negotiator records the challenged scheme as negotiated and
// the caller should mark the last outbound message for resend with updated
// credentials (spec §4.5). On error the session must abort AUTH_FAILED.
func (n *Negotiator) HandlePeerChallenge(ctx context.Context, offered Scheme, nonce []byte) error {
	if offered == SchemeMD5 && len(nonce) == 0 {
		// Try the cached nonce from a prior session before giving up.
		rec, err := n.store.LoadNonce(ctx, n.nonceKey())
		if err != nil || len(rec.Nonce) == 0 {
			return fmt.Errorf("handle md5 challenge: %w", ErrNonceUnavailable)
		}
		nonce = rec.Nonce
	}

	if offered.strength() < n.negotiated.strength() {
		// Downgrade prevention (spec §4.5): once MD5 is negotiated, a later
		// basic challenge is refused; config mandating MD5 also refuses a
		// basic challenge from the peer.
		return fmt.Errorf("handle challenge %s after %s negotiated: %w", offered, n.negotiated, ErrDowngradeRefused)
	}

	if offered == SchemeBasic && n.cfg.Scheme == SchemeMD5 {
		return fmt.Errorf("handle basic challenge with md5-mandated config: %w", ErrDowngradeRefused)
	}

	if offered == SchemeMD5 && len(nonce) > 0 {
		if err := n.store.SaveNonce(ctx, changelog.NonceRecord{Key: n.nonceKey(), Nonce: nonce}); err != nil {
			return fmt.Errorf("cache challenge nonce: %w", err)
		}
	}

	n.negotiated = maxScheme(n.negotiated, offered)
	return nil
}

// Negotiated returns the strongest scheme successfully negotiated so far.
func (n *Negotiator) Negotiated() Scheme {
	return n.negotiated
}

func maxScheme(a, b Scheme) Scheme {
	if a.strength() >= b.strength() {
		return a
	}
	return b
}
