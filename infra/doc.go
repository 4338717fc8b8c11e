// Package infra contains technical adapters such as the MQTT publisher,
// metrics sinks, history stores and sentry monitoring. These packages
// depend only on the interfaces defined in the core packages.
package infra
