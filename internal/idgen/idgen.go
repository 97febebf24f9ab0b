package idgen

import "github.com/google/uuid"

// NewFunc returns a new globally unique identifier as string. Override in tests.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier
func New() string { return NewFunc() }
