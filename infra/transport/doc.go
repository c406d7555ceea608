// Package transport provides the Transport implementations the dispatch
// orchestrator delivers through: a simulated municipal endpoint, an HTTP
// webhook and (via infra/mqtt) an MQTT request/ack exchange. Importing the
// package registers them as "simulated", "webhook" and "mqtt".
package transport
