package account

import "errors"

var (
	// ErrNotFound indicates the record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a request failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidUsername indicates a username is empty, too long or contains "@".
	ErrInvalidUsername = errors.New("invalid username")
	// ErrWeakPassword indicates a password does not satisfy the policy.
	ErrWeakPassword = errors.New("password does not satisfy policy")
	// ErrPasswordMismatch indicates the password confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrUsernameTaken indicates another account owns the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken indicates another address row owns the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials indicates a failed login or a wrong current password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates a verification or reset token did not match.
	ErrInvalidToken = errors.New("invalid token")
	// ErrAlreadyVerified indicates the address needs no further verification.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrMailDelivery indicates the change was stored but its email could not be sent.
	ErrMailDelivery = errors.New("mail delivery failed")
)
