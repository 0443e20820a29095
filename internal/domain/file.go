package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// FileStatus is the processing state of an uploaded file.
type FileStatus string

// Possible file status values. A file normally advances
// pending -> processing -> processed|failed.
const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusProcessed  FileStatus = "processed"
	FileStatusFailed     FileStatus = "failed"
)

// Common validation errors for File
var (
	ErrEmptyFileHash     = errors.New("file hash cannot be empty")
	ErrEmptyFilename     = errors.New("original filename cannot be empty")
	ErrFilenameTooLong   = errors.New("original filename must be at most 255 characters")
	ErrEmptyFilePath     = errors.New("file path cannot be empty")
	ErrEmptyFileOwnerID  = errors.New("file owner ID cannot be empty")
	ErrFileHashMalformed = errors.New("file hash must be 64 hex characters")
)

// MaxFilenameLength matches the original_filename column width.
const MaxFilenameLength = 255

// File is the metadata row for one uploaded file. FileHash is generated at
// upload time and is not a digest of the content.
type File struct {
	FileHash         string     `json:"file_hash"`
	OriginalFilename string     `json:"original_filename"`
	FilePath         string     `json:"-"`
	UserID           uuid.UUID  `json:"-"`
	Status           FileStatus `json:"status"`
	IsDeleted        bool       `json:"is_deleted"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewFile creates a pending File owned by userID.
func NewFile(fileHash, originalFilename, filePath string, userID uuid.UUID) (*File, error) {
	now := time.Now().UTC()
	file := &File{
		FileHash:         fileHash,
		OriginalFilename: originalFilename,
		FilePath:         filePath,
		UserID:           userID,
		Status:           FileStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}

	return file, nil
}

// Validate checks if the File has valid data.
func (f *File) Validate() error {
	if f.FileHash == "" {
		return ErrEmptyFileHash
	}
	if !IsValidFileHash(f.FileHash) {
		return ErrFileHashMalformed
	}
	if f.OriginalFilename == "" {
		return ErrEmptyFilename
	}
	if len(f.OriginalFilename) > MaxFilenameLength {
		return ErrFilenameTooLong
	}
	if f.FilePath == "" {
		return ErrEmptyFilePath
	}
	if f.UserID == uuid.Nil {
		return ErrEmptyFileOwnerID
	}
	if !f.Status.Valid() {
		return ErrInvalidFileStatus
	}
	return nil
}

// Valid reports whether s is one of the known file statuses.
func (s FileStatus) Valid() bool {
	switch s {
	case FileStatusPending, FileStatusProcessing, FileStatusProcessed, FileStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further processing is expected.
func (s FileStatus) IsTerminal() bool {
	return s == FileStatusProcessed || s == FileStatusFailed
}
