package repository

import "errors"

// ErrNotFound is returned when a requested player, team, game or persisted
// record does not exist. An empty result set is not an error.
var ErrNotFound = errors.New("record not found")
