/*
Package errs provides custom error types and application-level error code constants.

These error codes identify the presence and messaging failures reported to a single
connection, and the few HTTP-level failures of the surrounding server.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidPayload indicates that an inbound event could not be decoded.
	ErrInvalidPayload = 1003

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Room and Content Validation Errors
const (
	// ErrInvalidIdentity indicates an empty or oversized display identity.
	ErrInvalidIdentity = 2101

	// ErrInvalidRoom indicates a room name outside the advertised catalog.
	ErrInvalidRoom = 2102

	// ErrNotJoined indicates a room operation issued by a connection that has not joined a room.
	ErrNotJoined = 2103

	// ErrEmptyMessage indicates a message with no visible text.
	ErrEmptyMessage = 2201

	// ErrMessageTooLong indicates that the message exceeded the maximum length limit.
	ErrMessageTooLong = 2202
)

// 3xxx: Session Errors
const (
	// ErrDuplicateConnection indicates that a connection identifier was registered twice.
	ErrDuplicateConnection = 3001

	// ErrServerDraining indicates that the server is shutting down and accepts no new joins.
	ErrServerDraining = 3002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
