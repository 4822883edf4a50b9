// Package connector runs the single upstream feed subscription of a channel.
//
// A Connector dials synchronously in Start and then reads on its own
// goroutine. That goroutine is supervised: panics are recovered and reported
// to the handler as fatal failures, so a misbehaving feed can never take the
// process down. Lost connections are redialed with bounded exponential
// backoff.
package connector
