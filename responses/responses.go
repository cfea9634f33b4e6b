package responses

import (
	"time"
)

// SignIn - an anonymous identity
type SignIn struct {
	UID       string    `json:"uid"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Newsletter - result of a subscription
type Newsletter struct {
	Subscribed bool `json:"subscribed"`
	// the address had been subscribed before
	AlreadySubscribed bool `json:"alreadySubscribed"`
}

// Categories - the board categories and the accepted filter values
type Categories struct {
	Categories []string `json:"categories"`
	Default    string   `json:"default"`
	Filters    []string `json:"filters"`
}
