package storage

import "context"

// File is a destination-side object reference.
type File struct {
	ID   string
	Name string
}

// UploadSpec describes one mirrored backup file. An empty FileID means
// create; a set one means update that object in place.
type UploadSpec struct {
	Name        string
	FileID      string
	Description string
	Data        []byte
}

// Store lists and writes files in the configured destination folder.
type Store interface {
	List(ctx context.Context) ([]File, error)
	Upload(ctx context.Context, spec UploadSpec) (File, error)
}
