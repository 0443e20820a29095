package service

import "errors"

// Service errors. Callers check them with errors.Is.
var (
	// ErrFileTooLarge is returned when an upload exceeds the configured size
	// limit. API layer maps this to 413.
	ErrFileTooLarge = errors.New("file size exceeds the upload limit")

	// ErrNoFiles is returned when a multi-file upload carries no files.
	ErrNoFiles = errors.New("no files uploaded")

	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	// ErrInactiveUser is returned when a deactivated account authenticates.
	ErrInactiveUser = errors.New("inactive user")

	// ErrInvalidPaging is returned for a negative skip or a limit outside 1..MaxListLimit.
	ErrInvalidPaging = errors.New("invalid paging parameters")

	// ErrTaskNotFound is returned when neither storage nor the queue knows a task id.
	ErrTaskNotFound = errors.New("task not found")
)
