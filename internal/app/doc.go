// Package app provides the application service layer.
//
// Orchestrates use cases: connecting and disconnecting principals, logout,
// opening transports and reading channel statistics. Sits between HTTP
// handlers and the hub. Depends on interfaces, not concrete implementations.
package app
