package cache

import (
	"strings"
)

// KeySeparator joins the endpoint and parameters of a cache key.
const KeySeparator = ":"

// Key identifies a logical upstream request.
// Parameter order is significant: pair:USD:EUR and pair:EUR:USD are different rates.
type Key struct {
	// Endpoint is the upstream endpoint name (e.g., "latest", "pair", "codes")
	Endpoint string

	// Params are the ordered request parameters (e.g., ["USD", "EUR"])
	Params []string
}

// NewKey builds a Key from an endpoint and its ordered parameters.
func NewKey(endpoint string, params ...string) Key {
	return Key{Endpoint: endpoint, Params: params}
}

// String generates the canonical key string.
// Format: endpoint:param1:param2:...:paramN
//
// Example:
//
//	latest:USD
//	pair:USD:EUR
//	codes:
func (k Key) String() string {
	return k.Endpoint + KeySeparator + strings.Join(k.Params, KeySeparator)
}
