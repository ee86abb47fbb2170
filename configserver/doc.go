// Package configserver fetches externalized configuration from a
// Spring-Cloud-Config-style HTTP endpoint and merges it into an explicit
// Store. The config service is located either by a direct URI or through
// the registry's discovery cache.
package configserver
