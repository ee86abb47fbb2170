// Package eureka implements the service-registry side of the client:
// the instance wire model, the REST transport with multi-server failover,
// the registration lifecycle, the heartbeat scheduler, and the discovery
// cache other components read service locations from.
package eureka
