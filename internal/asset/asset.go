// Package asset stores rendered images in named folders and hands back
// shareable references of the form https://<host>/uc?id=<fileId>.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minyeamer/gspread/internal/logger"
)

var ErrNotFound = errors.New("asset not found")

// IfExists decides what EnsureFolder does with a folder that already exists.
type IfExists string

const (
	IfExistsIgnore  IfExists = "ignore"
	IfExistsReplace IfExists = "replace"
)

func ParseIfExists(s string) (IfExists, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(IfExistsIgnore):
		return IfExistsIgnore, nil
	case string(IfExistsReplace):
		return IfExistsReplace, nil
	default:
		return "", fmt.Errorf("unknown if_exists policy %q (want ignore|replace)", s)
	}
}

type Folder struct {
	ID        string
	Name      string
	Shared    bool
	CreatedAt time.Time
}

type File struct {
	ID        string
	FolderID  string
	Name      string
	MimeType  string
	Size      int64
	Trashed   bool
	CreatedAt time.Time
}

// Blob is what gets saved: bytes plus the suggested file name.
type Blob struct {
	Name     string
	MimeType string
	Bytes    []byte
}

type Reference struct {
	FileID string
	URL    string
}

type Store interface {
	// EnsureFolder returns the folder called name, creating it link-shareable
	// when absent. With IfExistsReplace an existing folder's files are trashed.
	EnsureFolder(ctx context.Context, name string, mode IfExists) (Folder, error)
	Save(ctx context.Context, folder Folder, blob Blob) (Reference, error)
	// Clear moves every file in the folder to the trash.
	Clear(ctx context.Context, folder Folder) error
	// PurgeTrash permanently deletes trashed files.
	PurgeTrash(ctx context.Context) error
	Open(ctx context.Context, fileID string) (File, io.ReadCloser, error)
	Close() error
}

// StoreError wraps a failed folder or file operation.
type StoreError struct {
	Op     string
	Folder string
	Cause  error
}

func (e *StoreError) Error() string {
	if e.Folder != "" {
		return fmt.Sprintf("asset %s %q: %v", e.Op, e.Folder, e.Cause)
	}
	return fmt.Sprintf("asset %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// HousekeepingError is a trash purge failure. It is logged, never returned to a run.
type HousekeepingError struct {
	Cause error
}

func (e *HousekeepingError) Error() string { return "housekeeping: " + e.Cause.Error() }

func (e *HousekeepingError) Unwrap() error { return e.Cause }

// PurgeTrashQuietly empties the trash and logs any failure.
func PurgeTrashQuietly(ctx context.Context, s Store) {
	if s == nil {
		return
	}
	if err := s.PurgeTrash(ctx); err != nil {
		logger.Errorf("%v", &HousekeepingError{Cause: err})
		return
	}
	logger.Infof("asset: trash emptied")
}

// ReferenceURL builds the link written into the grid for a stored file.
func ReferenceURL(host, fileID string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		host = "localhost"
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host + "/uc?id=" + fileID
}
