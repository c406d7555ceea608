// Package events defines the dispatch events emitted on the event bus.
//
// Available event types:
//   - RoundStartedEvent: a round begins for an issue
//   - OutcomeEvent: one target's delivery attempt settled
//   - RoundCompletedEvent: every attempt of the round settled
package events
