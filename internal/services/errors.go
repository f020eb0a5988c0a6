package services

import "errors"

// Closed set of failure kinds surfaced by the auth flows. Handlers
// map these to status codes; anything not in this set is an internal
// failure. Storage and crypto errors are translated to one of these
// at the service boundary and never propagate raw.
var (
	// ErrEmailTaken means an account with that email already exists.
	ErrEmailTaken = errors.New("email is taken")

	// ErrUserNotFound means no account matches the given email.
	ErrUserNotFound = errors.New("user with that email does not exist")

	// ErrBadCredentials means the password digest did not match.
	ErrBadCredentials = errors.New("email and password do not match")

	// ErrActivationExpired means the activation link outlived its
	// window; the remedy is requesting a fresh one.
	ErrActivationExpired = errors.New("expired activation link")

	// ErrActivationInvalid means the activation link failed
	// verification for any reason other than expiry.
	ErrActivationInvalid = errors.New("invalid activation link")

	// ErrResetExpired means the reset link outlived its window.
	ErrResetExpired = errors.New("expired reset link")

	// ErrResetInvalid means the reset link failed verification.
	ErrResetInvalid = errors.New("invalid reset link")

	// ErrResetLinkStale means the reset token verified but no account
	// carries it anymore: either it was never issued or a newer
	// forgot-password request superseded it.
	ErrResetLinkStale = errors.New("reset link is no longer valid")

	// ErrTokenExpired means a signed token's timestamp is stale while
	// its signature is intact.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid means a signed token failed verification: bad
	// signature, malformed structure, or wrong key. Deliberately
	// generic so callers cannot tell which check failed.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrIdentityInvalid means the third-party identity assertion
	// could not be verified. Provider internals are not exposed.
	ErrIdentityInvalid = errors.New("identity verification failed")

	// ErrIdentityNotVerified means the provider vouches for the
	// assertion but not for ownership of the email address.
	ErrIdentityNotVerified = errors.New("identity email is not verified")

	// ErrDuplicateAccount means account creation hit a uniqueness
	// constraint, e.g. an activation link replayed after it already
	// created the account.
	ErrDuplicateAccount = errors.New("account already exists")
)
