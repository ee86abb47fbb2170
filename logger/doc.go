// Package logger provides structured logging for springkit components,
// built on zerolog.
//
// Components obtain a tagged logger via WithComponent and emit events with
// optional field maps:
//
//	log := logger.NewDefault("orders-api").WithComponent("eureka")
//	log.Warn("heartbeat failed", logger.Fields("instance_id", id))
package logger
