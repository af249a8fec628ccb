// Package remote fetches the authoritative copy of a user's data from the
// REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/offlinekit/internal/netx"
)

// Snapshot is the remote state of one user.
type Snapshot struct {
	User    json.RawMessage
	Profile json.RawMessage
	Email   string
}

// Source fetches a user snapshot. A nil snapshot with a nil error means the
// remote side has nothing for that user.
type Source interface {
	Fetch(ctx context.Context, userID string) (*Snapshot, error)
}

// HTTPSource reads GET /users/{id} and GET /users/{id}/profile. A missing
// profile is reported as an empty object.
type HTTPSource struct {
	client *netx.Client
}

func NewHTTPSource(client *netx.Client) *HTTPSource {
	return &HTTPSource{client: client}
}

// Fetch loads the user document and profile. A 404 on the user is reported
// as a nil snapshot, not as an error.
func (s *HTTPSource) Fetch(ctx context.Context, userID string) (*Snapshot, error) {
	base := "/users/" + url.PathEscape(userID)

	var user json.RawMessage
	if err := s.client.Do(ctx, http.MethodGet, base, nil, &user); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	if isEmpty(user) {
		return nil, nil
	}

	var profile json.RawMessage
	if err := s.client.Do(ctx, http.MethodGet, base+"/profile", nil, &profile); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("fetch profile %s: %w", userID, err)
	}
	if isEmpty(profile) {
		profile = json.RawMessage(`{}`)
	}

	var head struct {
		Email string `json:"email"`
	}
	_ = json.Unmarshal(user, &head)

	return &Snapshot{User: user, Profile: profile, Email: head.Email}, nil
}

func isNotFound(err error) bool {
	var he *netx.HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

func isEmpty(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte("{}"))
}
