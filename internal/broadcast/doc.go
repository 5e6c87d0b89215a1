// Package broadcast implements the subscriber fan-out using the actor pattern.
//
// One goroutine owns the subscriber set and receives commands over a channel (no mutexes).
// Every subscriber has its own writer goroutine fed by a bounded queue, so a stalled
// connection never delays the others. Subscribers that fail or fall behind are removed
// after the sweep that detected them.
package broadcast
