// Package infra holds the adapters behind the core interfaces: the zerolog
// logger, metrics sinks, the MQTT publisher, the Sentry monitor, the session
// file source, the simulator subprocess and the KPI store.
package infra
