package core

import "github.com/google/uuid"

// IDGenerator produces opaque unique identifiers for tasks and accounts.
type IDGenerator interface {
	NewID() string
}

type uuidGenerator struct{}

// NewUUIDGenerator returns an IDGenerator that emits random UUIDv4 strings.
func NewUUIDGenerator() IDGenerator {
	return uuidGenerator{}
}

func (uuidGenerator) NewID() string {
	return uuid.NewString()
}
