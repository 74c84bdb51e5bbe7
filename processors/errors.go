package processors

import "errors"

var (
	// ErrUnknownProcessor is returned by Lookup for an unregistered name.
	ErrUnknownProcessor = errors.New("unknown processor")

	// ErrMissingDependency is returned by Lookup when a processor needs a
	// dependency that was not supplied.
	ErrMissingDependency = errors.New("missing processor dependency")

	// ErrMixedRoute indicates payloads in one batch route to different tables.
	ErrMixedRoute = errors.New("payloads in one batch route to different tables")

	// ErrRouteField is returned when a route field is empty.
	ErrRouteField = errors.New("route field required")
)
