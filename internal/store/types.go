package store

import "errors"

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// ErrSubscriptionTaken is returned when a push endpoint is already registered to another user.
var ErrSubscriptionTaken = errors.New("subscription belongs to another user")
