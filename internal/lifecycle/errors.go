package lifecycle

import "errors"

var (
	ErrCorpseNotFound = errors.New("no corpse found")
	ErrNotOnline      = errors.New("session is not online")
)
