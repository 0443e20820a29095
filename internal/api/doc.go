// Package api serves the HTTP endpoints: registration and tokens, the user
// listing, file uploads, the file listing and task status lookups. Handlers
// translate requests into service calls and map service errors to safe
// client responses.
package api
