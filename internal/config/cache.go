package config

import (
	"strings"
	"time"
)

// CacheConfig drives the Redis response cache middleware. KeyStrategy selects
// which request parts form the key: route, method_route, method_route_query
// or route_query (default).
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED" env-default:"true"`
	MethodList   []string      `env:"CACHE_METHODS" env-separator:"," env-default:"GET"`
	TTL          time.Duration `env:"CACHE_TTL" env-default:"5s"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY" env-default:"route_query"`
	Prefix       string        `env:"CACHE_PREFIX" env-default:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" env-default:"1048576"`

	methods map[string]bool
}

func (c *CacheConfig) normalize() {
	c.methods = make(map[string]bool, len(c.MethodList))
	for _, m := range c.MethodList {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			c.methods[m] = true
		}
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Second
	}
}

// Caches reports whether responses to method may be cached.
func (c CacheConfig) Caches(method string) bool {
	if c.methods == nil {
		c.normalize()
	}
	return c.methods[strings.ToUpper(method)]
}
