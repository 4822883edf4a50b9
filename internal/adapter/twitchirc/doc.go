// Package twitchirc reads Twitch chat anonymously over IRC-on-WebSocket.
// Each Dial opens one connection, logs in as a justinfan user and joins a
// single channel.
package twitchirc
