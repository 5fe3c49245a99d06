/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its wire kind, user message and HTTP status.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Kind: "InvalidParams", Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrInvalidPayload:    {Code: ErrInvalidPayload, Kind: "InvalidPayload", Message: "Unsupported message format."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Kind: "RateLimited", Message: "Too many requests. Please slow down.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Content Validation Errors
	ErrInvalidIdentity: {Code: ErrInvalidIdentity, Kind: "InvalidIdentity", Message: "Username must be 1 to %d characters."},
	ErrInvalidRoom:     {Code: ErrInvalidRoom, Kind: "InvalidRoom", Message: "Invalid room selected."},
	ErrNotJoined:       {Code: ErrNotJoined, Kind: "NotJoined", Message: "Please join a room first."},
	ErrEmptyMessage:    {Code: ErrEmptyMessage, Kind: "EmptyMessage", Message: "Message cannot be empty."},
	ErrMessageTooLong:  {Code: ErrMessageTooLong, Kind: "MessageTooLong", Message: "Message too long (max %d characters)."},

	// 3xxx: Session Errors
	ErrDuplicateConnection: {Code: ErrDuplicateConnection, Kind: "DuplicateConnection", Message: "Connection already registered."},
	ErrServerDraining:      {Code: ErrServerDraining, Kind: "ServerDraining", Message: "Server is restarting. Please reconnect shortly.", Status: http.StatusServiceUnavailable},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Kind: "Unknown", Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
