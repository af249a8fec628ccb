package security

import (
	"context"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the session credential the data layer reads.
type Claims struct {
	UserID    string
	Role      string
	SessionID string
	ExpiresAt *jwt.NumericDate
}

// ParseClaims decodes token without verifying its signature: the client
// holds no verification key, the server re-checks every replayed request.
func ParseClaims(token string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, err
	}

	c := &Claims{}
	c.UserID = stringClaim(mc, "user_id")
	if c.UserID == "" {
		c.UserID = stringClaim(mc, "sub")
	}
	c.Role = stringClaim(mc, "role")
	c.SessionID = stringClaim(mc, "sid")

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return nil, err
	}
	c.ExpiresAt = exp
	return c, nil
}

func stringClaim(mc jwt.MapClaims, name string) string {
	v, _ := mc[name].(string)
	return v
}

// CurrentClaims decodes the live credential. It returns ErrNoCredential when
// no one is signed in.
func (s *Service) CurrentClaims(ctx context.Context) (*Claims, error) {
	token, err := s.creds.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNoCredential
	}
	return ParseClaims(token)
}

// ValidateOfflineAccess reports whether offline reads and writes are allowed
// right now: a credential is present and decodes, it stays valid for more
// than MinValidity, and its role is allowed.
func (s *Service) ValidateOfflineAccess(ctx context.Context) bool {
	c, err := s.CurrentClaims(ctx)
	if err != nil {
		s.log.Debug(ctx, "offline access denied", "reason", err.Error())
		return false
	}
	if c.ExpiresAt == nil || !c.ExpiresAt.Time.After(s.now().Add(s.opts.MinValidity)) {
		s.log.Debug(ctx, "offline access denied", "reason", "credential expires too soon")
		return false
	}
	if !slices.Contains(s.opts.AllowedRoles, c.Role) {
		s.log.Debug(ctx, "offline access denied", "reason", "role not allowed", "role", c.Role)
		return false
	}
	return true
}
