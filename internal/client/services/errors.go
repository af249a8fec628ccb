package services

import (
	"errors"

	"github.com/dmitrijs2005/offlinekit/internal/client/security"
)

var (
	ErrNoCachedData = errors.New("no cached data for user")
	ErrNoRemoteData = errors.New("remote returned no user data")

	ErrAccessDenied = security.ErrAccessDenied
)
