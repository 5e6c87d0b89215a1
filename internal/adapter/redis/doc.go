// Package redis implements the alert stream on Redis Streams.
//
// Every raised alert is appended to one capped stream. The stream doubles as the feed for
// the recent-alerts endpoint. All commands pass through a circuit breaker hook so that an
// unreachable Redis fails fast instead of stalling alert delivery.
package redis
