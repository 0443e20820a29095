// Package domain contains the core business entities of the file service:
// users, uploaded files and persisted task statuses, together with their
// validation rules and status vocabularies. It is independent of any storage
// or delivery mechanism.
package domain
