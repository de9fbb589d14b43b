package wallet

import "errors"

// Error taxonomy shared by every provider. Callers classify with errors.Is;
// providers wrap these with operation context.
var (
	// ErrGeneration means the entropy source failed. The call may be retried.
	ErrGeneration = errors.New("key generation failed")
	// ErrInvalidKeyFormat means an imported key representation was rejected.
	ErrInvalidKeyFormat = errors.New("invalid key format")
	// ErrSigning means a transaction could not be built or signed.
	ErrSigning = errors.New("signing failed")
	// ErrSubmission means a signed transaction was not confirmed by the network.
	// Retrying the same signed payload is safe; re-signing is not.
	ErrSubmission = errors.New("submission failed")
	// ErrNoActiveIdentity means the network slot is Empty.
	ErrNoActiveIdentity = errors.New("no active identity")
	// ErrPersistence means the identity record could not be stored or read.
	ErrPersistence = errors.New("persistence failed")
	// ErrUnsupported means the operation is not offered for the network.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrUnknownNetwork means the network tag is not recognized.
	ErrUnknownNetwork = errors.New("unknown network")
)
