package storage

import "errors"

var ErrDirectory = errors.New("storage directory unavailable")
