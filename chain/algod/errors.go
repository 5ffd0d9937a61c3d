package algod

import "errors"

var (
	// ErrNotFound is returned when algod answers 404.
	ErrNotFound = errors.New("resource not found")

	// ErrBadRequest is returned when algod answers 400, which is how it
	// refuses a broadcast.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized is returned when the API token is missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrServer is returned when algod keeps failing with 5xx or 429
	// after all retry attempts.
	ErrServer = errors.New("server error")

	// ErrBaseURLRequired is returned when the client has no base URL.
	ErrBaseURLRequired = errors.New("base URL is required")

	// ErrClientRequired is returned when the chain bridge has no client.
	ErrClientRequired = errors.New("client is required")
)
