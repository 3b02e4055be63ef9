// Package errs carries ledger failures to the HTTP layer with the status
// code the client should see.
package errs

import "errors"

// Response is the body written for a failed request. Fields is set for
// request validation failures.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is an error whose message is safe to return to the client, such
// as an insufficient balance or a stale work submission.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted marks the error as safe for the client and attaches the HTTP
// status to respond with.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface.
func (te *Trusted) Error() string {
	return te.Err.Error()
}

// Unwrap gives errors.Is access to the ledger error underneath.
func (te *Trusted) Unwrap() error {
	return te.Err
}

// IsTrusted reports whether a Trusted error is in the chain.
func IsTrusted(err error) bool {
	var te *Trusted
	return errors.As(err, &te)
}

// GetTrusted returns the Trusted error in the chain or nil.
func GetTrusted(err error) *Trusted {
	var te *Trusted
	if !errors.As(err, &te) {
		return nil
	}
	return te
}
