// Package identity turns the identity claims carried by a request
// envelope into a verified principal. Nothing is trusted from transport
// state: every claim is proven per request or dropped.
package identity

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/signature"
)

const (
	// OAuthPrefix marks user ids backed by a GitHub account.
	OAuthPrefix = "github|"
	// AdminPrefix wraps an allow-listed OAuth id to request admin rights.
	AdminPrefix = "admin|"
)

var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrMissingSignature = errors.New("no signature provided with fromClientId")
	ErrUnverifiedUser   = errors.New("unable to verify github user ID")
	ErrInvalidAdmin     = errors.New("invalid admin user ID")
)

// Principal is the verified caller. Empty fields mean the claim was
// absent; a zero Principal is anonymous.
type Principal struct {
	ClientID string
	UserID   string
}

func (p Principal) Anonymous() bool {
	return p.ClientID == "" && p.UserID == ""
}

// IsAdmin reports whether the principal was verified as an admin.
func (p Principal) IsAdmin() bool {
	return strings.HasPrefix(p.UserID, AdminPrefix)
}

// Envelope carries an end-user request with its identity claims.
type Envelope struct {
	Payload      json.RawMessage `json:"payload"`
	FromClientID string          `json:"fromClientId,omitempty"`
	Signature    string          `json:"signature,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	OAuthToken   string          `json:"oauthToken,omitempty"`
	// GithubAccessToken is accepted as an alias of OAuthToken.
	GithubAccessToken string `json:"githubAccessToken,omitempty"`
}

func (e *Envelope) token() string {
	if e.OAuthToken != "" {
		return e.OAuthToken
	}
	return e.GithubAccessToken
}

// Verifier checks that token authenticates the OAuth account login.
type Verifier interface {
	Verify(ctx context.Context, login, token string) (bool, error)
}

// Resolver resolves envelopes. AdminUserIDs holds OAuth ids (for
// example "github|alice") permitted to use the admin prefix.
type Resolver struct {
	AdminUserIDs []string
	Verifier     Verifier
	Skew         time.Duration
	Now          func() time.Time
}

// NewResolver returns a Resolver with the default 30s skew bound.
func NewResolver(adminUserIDs []string, verifier Verifier) *Resolver {
	return &Resolver{
		AdminUserIDs: adminUserIDs,
		Verifier:     verifier,
		Skew:         30 * time.Second,
		Now:          time.Now,
	}
}

// Resolve applies the identity rules in order: timestamp bound, client
// signature, OAuth user, admin user. Any claim that fails verification
// rejects the whole request.
func (r *Resolver) Resolve(ctx context.Context, env *Envelope) (Principal, error) {
	var p Principal

	if err := r.checkTimestamp(env.Payload); err != nil {
		return p, err
	}

	if env.FromClientID != "" {
		if env.Signature == "" {
			return p, ErrMissingSignature
		}
		if err := signature.Check(env.Payload, env.FromClientID, env.Signature); err != nil {
			return p, err
		}
		p.ClientID = env.FromClientID
	}

	switch {
	case env.UserID == "":
	case strings.HasPrefix(env.UserID, OAuthPrefix) && env.token() != "":
		if err := r.verifyOAuth(ctx, env.UserID, env.token()); err != nil {
			return p, err
		}
		p.UserID = env.UserID
	case strings.HasPrefix(env.UserID, AdminPrefix):
		inner := strings.TrimPrefix(env.UserID, AdminPrefix)
		if !r.allowListed(inner) {
			return p, ErrInvalidAdmin
		}
		if !strings.HasPrefix(inner, OAuthPrefix) {
			return p, errors.Wrap(ErrInvalidAdmin, "does not start with "+OAuthPrefix)
		}
		if err := r.verifyOAuth(ctx, inner, env.token()); err != nil {
			return p, errors.Wrap(err, "admin")
		}
		p.UserID = env.UserID
	}

	return p, nil
}

func (r *Resolver) checkTimestamp(payload json.RawMessage) error {
	var body struct {
		Timestamp *float64 `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return errors.Wrap(err, "decode payload")
	}
	if body.Timestamp == nil {
		return errors.Wrap(ErrInvalidTimestamp, "payload has no timestamp")
	}
	now := r.now()
	elapsed := float64(now.UnixNano())/float64(time.Second) - *body.Timestamp
	if math.Abs(elapsed) > r.skew().Seconds() {
		return errors.Wrapf(ErrInvalidTimestamp, "%v is %.3fs from server time", *body.Timestamp, elapsed)
	}
	return nil
}

func (r *Resolver) verifyOAuth(ctx context.Context, userID, token string) error {
	if r.Verifier == nil || token == "" {
		return ErrUnverifiedUser
	}
	ok, err := r.Verifier.Verify(ctx, strings.TrimPrefix(userID, OAuthPrefix), token)
	if err != nil {
		return errors.Wrap(ErrUnverifiedUser, err.Error())
	}
	if !ok {
		return ErrUnverifiedUser
	}
	return nil
}

func (r *Resolver) allowListed(userID string) bool {
	for _, id := range r.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Resolver) skew() time.Duration {
	if r.Skew <= 0 {
		return 30 * time.Second
	}
	return r.Skew
}
