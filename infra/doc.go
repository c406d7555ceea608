// Package infra contains technical adapters: the simulated, webhook and MQTT
// transports, metrics exporters, logging and error reporting. These packages
// depend only on the interfaces defined in the core packages.
package infra
