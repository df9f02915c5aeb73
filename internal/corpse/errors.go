package corpse

import "errors"

var ErrNotFound = errors.New("corpse not found")
