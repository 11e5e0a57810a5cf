package domain

import "errors"

var (
	// ErrNotFound covers unknown charge points, sessions and transactions.
	// Surfaced as a protocol rejection or HTTP 404 at the boundary.
	ErrNotFound = errors.New("not found")

	// ErrInvalidIdTag means the id_tag resolved to no account, or no active
	// charging service exists. Surfaced as idTagInfo.status=Invalid.
	ErrInvalidIdTag = errors.New("id tag cannot be resolved")

	// ErrPreconditionFailed means the requested transition is illegal for the
	// current session or charge point state, or the balance is too low.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrBridgeUnreachable means the device gateway could not be reached.
	ErrBridgeUnreachable = errors.New("bridge unreachable")

	// ErrBridgeError means the device gateway answered with a non-2xx status.
	ErrBridgeError = errors.New("bridge error")
)
