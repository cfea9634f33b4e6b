package utils

import (
	"net/url"
)

// IsValidUrl accepts absolute http and https urls with a host
func IsValidUrl(str string) bool {
	u, err := url.Parse(str)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != ""
}
