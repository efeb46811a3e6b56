package storage

import (
	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
)

// ErrNotFound is returned when a user has no stored value.
var ErrNotFound = domerrors.ErrNotFound
