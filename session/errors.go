package session

import "errors"

var (
	// ErrStale reports a request discarded because its context changed. It
	// is not a failure, the result simply stopped mattering.
	ErrStale = errors.New("request context changed, result discarded")
	// ErrRequestInFlight is returned when a request of the same kind is
	// already pending in the session.
	ErrRequestInFlight = errors.New("request already in flight")
	// ErrDecryption wraps signature and co-processor failures.
	ErrDecryption = errors.New("decryption failed")
	// ErrEncryption wraps failures building an encrypted ballot.
	ErrEncryption = errors.New("ballot encryption failed")
	// ErrTransaction wraps chain level failures, reverts included.
	ErrTransaction = errors.New("transaction failed")
	// ErrTimeout is returned when a request exceeds the session timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrNoWallet is returned when the session has no key to sign permits.
	ErrNoWallet = errors.New("no wallet to sign the decryption permit")
)
