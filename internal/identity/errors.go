package identity

import (
	"errors"
	"fmt"
)

var (
	ErrRateLimited = errors.New("profile lookup rate limited")
	ErrNotFound    = errors.New("profile not found")
	ErrNoTextures  = errors.New("profile has no textures")
	ErrOffline     = errors.New("offline-mode identity")
)

// StatusError is returned for any other non-200 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected profile lookup status %d", e.Code)
}
