// Package server implements the core TCP and WebSocket chat service for
// Parley.
//
// The implementation is organized into specialized files for configuration,
// the session registry, broadcasting, moderation, authentication, and the
// connection supervisor to keep the codebase maintainable and testable as
// the project grows.
package server
