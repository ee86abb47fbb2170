package eureka

import "errors"

var (
	// ErrInstanceNotFound is returned by Heartbeat when the registry no
	// longer knows the instance (evicted lease). The caller must
	// re-register.
	ErrInstanceNotFound = errors.New("eureka: instance not registered")

	// ErrServiceNotFound is returned by discovery lookups when the
	// requested service does not appear in the current snapshot.
	ErrServiceNotFound = errors.New("eureka: service not found")

	// ErrNoInstances is returned by discovery lookups when the service
	// exists in the snapshot but none of its instances is UP.
	ErrNoInstances = errors.New("eureka: no instances available")

	// ErrNotRegistered is returned by operations that require an active
	// registration, such as UpdateStatus.
	ErrNotRegistered = errors.New("eureka: not registered")

	// ErrAllServersFailed is wrapped into transport errors when every
	// configured registry URL failed for one operation.
	ErrAllServersFailed = errors.New("eureka: all registry servers failed")
)
