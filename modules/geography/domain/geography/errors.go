package geography

import "errors"

var (
	ErrNotFound            = errors.New("geography not found")
	ErrStoreUnreachable    = errors.New("store unreachable")
	ErrRequiredRootMissing = errors.New("required root geography missing")
	ErrDuplicateKey        = errors.New("external key already taken")
)
