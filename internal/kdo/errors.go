package kdo

import "errors"

var (
	// ErrNotFound indicates the record does not exist or the caller may not see it.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a request failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidToken indicates an invitation token that matches no pending invitation.
	ErrInvalidToken = errors.New("invalid invitation token")
	// ErrAlreadyInvited indicates the address already has a pending invitation to the present.
	ErrAlreadyInvited = errors.New("already invited")
	// ErrUnknownFriend indicates a username that is unknown or not a friend of the caller.
	ErrUnknownFriend = errors.New("unknown friend")
	// ErrAlreadyBought indicates another participant bought the present.
	ErrAlreadyBought = errors.New("present already bought")
	// ErrNotBuyer indicates the caller did not buy the present.
	ErrNotBuyer = errors.New("present not bought by caller")
	// ErrMailDelivery indicates the change was stored but its email could not be sent.
	ErrMailDelivery = errors.New("mail delivery failed")
)
