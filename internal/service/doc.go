// Package service contains the application use cases: registering and
// authenticating users, accepting uploads and resolving task status. It
// coordinates the stores, the blob store and the task queue, and is the
// only layer the HTTP handlers talk to.
//
// Services return sentinel errors (see errors.go) or wrapped store errors;
// the API layer maps them to status codes.
package service
