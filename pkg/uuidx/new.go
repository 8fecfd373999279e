package uuidx

import "github.com/google/uuid"

// New returns a fresh version 7 UUID. V7 ids are time-ordered, which keeps
// connection ids and trigger-generated ids roughly sortable by creation
// time. It panics only if the system source of randomness fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns a fresh version 7 UUID in canonical string form. Used
// for connection ids, interaction-sink subscription ids and the id
// generation capability handed to triggers.
func NewString() string {
	return New().String()
}
