package gdrive

import (
	"bimvault/internal/auth"
	"bimvault/internal/logger"
	"bimvault/internal/storage"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const uploadChunkSize = 4 << 20

// Store mirrors backups into a single Drive folder, addressed by id.
type Store struct {
	svc      *drive.Service
	folderID string
}

func New(ctx context.Context, folderID string) (*Store, error) {
	if folderID == "" {
		return nil, errors.New("gdrive folder_id is not configured")
	}

	svc, err := auth.NewDriveService(ctx)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("gdrive store ready", zap.String("folder_id", folderID))
	return &Store{svc: svc, folderID: folderID}, nil
}

func (s *Store) List(ctx context.Context) ([]storage.File, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType!='application/vnd.google-apps.folder' and trashed=false", escapeQuery(s.folderID))

	var out []storage.File
	pageToken := ""
	for {
		call := s.svc.Files.List().
			Context(ctx).
			Q(q).
			PageSize(1000).
			Fields("nextPageToken, files(id, name)")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list folder: %w", err)
		}

		for _, f := range list.Files {
			out = append(out, storage.File{ID: f.Id, Name: f.Name})
		}

		if list.NextPageToken == "" {
			return out, nil
		}
		pageToken = list.NextPageToken
	}
}

func (s *Store) Upload(ctx context.Context, spec storage.UploadSpec) (storage.File, error) {
	reader := bytes.NewReader(spec.Data)
	progress := func(current, total int64) {
		if total > 0 {
			logger.Log.Info("uploading backup",
				zap.String("file", spec.Name),
				zap.String("progress", fmt.Sprintf("%d%%", current*100/total)))
		}
	}

	if spec.FileID != "" {
		updated, err := s.svc.Files.Update(spec.FileID, &drive.File{Description: spec.Description}).
			Context(ctx).
			Media(reader, googleapi.ChunkSize(uploadChunkSize)).
			ProgressUpdater(progress).
			Fields("id, name").
			Do()
		if err == nil {
			return storage.File{ID: updated.Id, Name: updated.Name}, nil
		}
		if !isNotFound(err) {
			return storage.File{}, fmt.Errorf("failed to update file: %w", err)
		}

		// The matched file vanished between listing and upload; fall
		// through and create a fresh copy.
		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			return storage.File{}, fmt.Errorf("failed to rewind payload: %w", err)
		}
	}

	driveFile := &drive.File{
		Name:        spec.Name,
		Parents:     []string{s.folderID},
		Description: spec.Description,
	}

	created, err := s.svc.Files.Create(driveFile).
		Context(ctx).
		Media(reader, googleapi.ChunkSize(uploadChunkSize)).
		ProgressUpdater(progress).
		Fields("id, name").
		Do()
	if err != nil {
		return storage.File{}, fmt.Errorf("failed to create file: %w", err)
	}

	return storage.File{ID: created.Id, Name: created.Name}, nil
}
