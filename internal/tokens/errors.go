package tokens

import "errors"

var (
	ErrTokenNotFound        = errors.New("token not found")
	ErrTokenAlreadyUsed     = errors.New("token already used")
	ErrTokenExpired         = errors.New("token expired")
	ErrSubscriptionRequired = errors.New("subscription required")
	ErrVenueRequired        = errors.New("venue id required")
)
