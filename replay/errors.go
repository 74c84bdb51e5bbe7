package replay

import "errors"

var (
	// ErrSenderRequired is returned when a replayer has nowhere to send payloads.
	ErrSenderRequired = errors.New("sender required")

	// ErrRepositoryRequired is returned when a replayer has no batch repository.
	ErrRepositoryRequired = errors.New("batch repository required")

	// ErrCorruptPayload indicates a stored payload is not a JSON object.
	ErrCorruptPayload = errors.New("stored payload is not a JSON object")
)
