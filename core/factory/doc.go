// Package factory provides a generic registry used to build pluggable
// modules (metrics sinks, run ledgers, cache stores) from `{type, conf}`
// configuration blocks.
package factory
