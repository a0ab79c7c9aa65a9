package notifications

import "errors"

// Subscription errors.
var (
	ErrSubscriberNotFound      = errors.New("subscriber not found")
	ErrAlreadySubscribed       = errors.New("email already subscribed")
	ErrInvalidUnsubscribeToken = errors.New("invalid unsubscribe token")
)
