// Package mocks provides shared test doubles for the store, auth and queue
// interfaces used by the service and API packages.
//
// Most mocks have function fields that override a default in-memory
// behaviour; MockFileStore is a testify mock for tests that assert on calls.
package mocks
