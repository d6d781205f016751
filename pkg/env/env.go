package env

import "os"

// Prefix namespaces every storefront environment variable so the
// service can share a host with other deployments.
const Prefix = "STOREFRONT_"

// Get returns the value of the given environment variable or a
// fallback. The prefixed form wins over the bare key so local
// overrides like STOREFRONT_LOG_FORMAT take effect without clobbering
// globals.
func Get(key, fallback string) string {
	if val := os.Getenv(Prefix + key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
