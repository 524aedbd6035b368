// Package dedupchan implements a deduplicating, bounded, multi-consumer
// work channel: a value already queued for a subscriber is dropped silently
// on a second Send, and a subscriber whose queue is full is marked lagging
// rather than blocking the sender. It backs the storage engine's
// "authors with missing events" signal consumed by the missing-event
// fetcher worker.
package dedupchan
