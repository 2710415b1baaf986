package types

import "errors"

var (
	ErrMissingValue     = errors.New("missing value")
	ErrUnsupportedValue = errors.New("unsupported value type")
)
