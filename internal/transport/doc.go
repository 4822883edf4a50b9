// Package transport delivers channel events to browser clients.
//
// A Consumer drains one hub mailbox into a Sink: it writes the connection
// frame and the replay backfill, then live events, and sends heartbeats when
// the channel is quiet. WebSocket and Server-Sent Events sinks are provided.
package transport
