// Package store defines the persistence interfaces used by the services and
// background tasks: users, uploaded file metadata and task status rows.
// Implementations live under internal/platform; this package only holds the
// contracts, the shared error vocabulary and the transaction helper.
package store
