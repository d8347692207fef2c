package protocol

import "errors"

var (
	// ErrProtocolSequence is returned when a message arrives in a phase that
	// does not accept it. Recoverable: the message is ignored.
	ErrProtocolSequence = errors.New("protocol sequence error")

	// ErrUnknownTag is returned for unrecognized message tags. Recoverable.
	ErrUnknownTag = errors.New("unknown message tag")

	// ErrMalformedPayload is returned for messages missing required fields or
	// carrying invalid values. Recoverable.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrDataConsistency is returned when the sent and received perturbation
	// maps do not cover the same peers. Fatal for the round.
	ErrDataConsistency = errors.New("data consistency error")

	// ErrMissingPrivateValue is returned when an operation needs the private
	// value before it was supplied.
	ErrMissingPrivateValue = errors.New("private value not supplied")

	// ErrValueAlreadySet is returned when the private value is supplied twice
	// in the same round.
	ErrValueAlreadySet = errors.New("private value already supplied")

	// ErrRoundAborted is returned for any message handled after a fatal error.
	ErrRoundAborted = errors.New("round aborted")
)

// IsRecoverable reports whether err only invalidates the current message, so
// the caller should log it and keep processing.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrProtocolSequence) ||
		errors.Is(err, ErrUnknownTag) ||
		errors.Is(err, ErrMalformedPayload)
}
