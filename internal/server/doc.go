// Package server implements the HTTP server and handlers for MiniDrive.
// It wires together the routes, dependencies (database, object storage,
// email), the access resolver governing file permissions, and lifecycle
// helpers used by tests and the production binary.
package server
