// Package events defines the simulation events emitted on the event bus.
//
// Available event types:
//   - CityStepEvent: state of the city after a simulation step
//   - ChargingEvent: a vehicle plugged in or left a charging station
//   - StrandedEvent: a vehicle ran out of energy on the road
//   - GridStepEvent: result of a grid-edge environment step
package events
