package dropbox

import (
	"bimvault/internal/auth"
	"bimvault/internal/logger"
	"bimvault/internal/storage"
	"bytes"
	"context"
	"fmt"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"go.uber.org/zap"
)

const uploadChunkSize = 4 << 20

// Store mirrors backups into one Dropbox folder. Dropbox has no
// update-by-id; overwrite write mode on the full path plays that role.
type Store struct {
	client files.Client
	folder string
}

func New(folderPath string) (*Store, error) {
	token, err := auth.NewDropboxToken()
	if err != nil {
		return nil, err
	}

	client := files.New(dropbox.Config{Token: token.AccessToken})

	folder := normalizePath(folderPath)
	if err := ensureFolder(client, folder); err != nil {
		return nil, fmt.Errorf("failed to prepare dropbox folder: %w", err)
	}

	logger.Log.Info("dropbox store ready", zap.String("folder", folder))
	return &Store{client: client, folder: folder}, nil
}

func (s *Store) List(_ context.Context) ([]storage.File, error) {
	res, err := s.client.ListFolder(files.NewListFolderArg(s.folder))
	if err != nil {
		return nil, fmt.Errorf("failed to list dropbox folder: %w", err)
	}

	var out []storage.File
	for {
		for _, entry := range res.Entries {
			if f, ok := entry.(*files.FileMetadata); ok {
				out = append(out, storage.File{ID: f.Id, Name: f.Name})
			}
		}

		if !res.HasMore {
			return out, nil
		}

		res, err = s.client.ListFolderContinue(files.NewListFolderContinueArg(res.Cursor))
		if err != nil {
			return nil, fmt.Errorf("failed to continue dropbox listing: %w", err)
		}
	}
}

func (s *Store) Upload(ctx context.Context, spec storage.UploadSpec) (storage.File, error) {
	path := s.folder + "/" + spec.Name
	overwrite := &files.WriteMode{Tagged: dropbox.Tagged{Tag: "overwrite"}}

	if len(spec.Data) <= uploadChunkSize {
		arg := files.NewUploadArg(path)
		arg.Mode = overwrite
		arg.Autorename = false

		meta, err := s.client.Upload(arg, bytes.NewReader(spec.Data))
		if err != nil {
			return storage.File{}, fmt.Errorf("failed to upload to dropbox: %w", err)
		}

		return storage.File{ID: meta.Id, Name: meta.Name}, nil
	}

	start, err := s.client.UploadSessionStart(files.NewUploadSessionStartArg(),
		bytes.NewReader(spec.Data[:uploadChunkSize]))
	if err != nil {
		return storage.File{}, fmt.Errorf("failed to start upload session: %w", err)
	}

	total := uint64(len(spec.Data))
	offset := uint64(uploadChunkSize)

	for total-offset > uploadChunkSize {
		if err := ctx.Err(); err != nil {
			return storage.File{}, fmt.Errorf("upload aborted: %w", err)
		}

		cursor := files.NewUploadSessionCursor(start.SessionId, offset)
		arg := files.NewUploadSessionAppendArg(cursor)
		if err := s.client.UploadSessionAppendV2(arg, bytes.NewReader(spec.Data[offset:offset+uploadChunkSize])); err != nil {
			return storage.File{}, fmt.Errorf("failed to append upload chunk: %w", err)
		}

		offset += uploadChunkSize
		logger.Log.Info("uploading backup",
			zap.String("file", spec.Name),
			zap.String("progress", fmt.Sprintf("%d%%", offset*100/total)))
	}

	commit := files.NewCommitInfo(path)
	commit.Mode = overwrite
	commit.Autorename = false

	cursor := files.NewUploadSessionCursor(start.SessionId, offset)
	meta, err := s.client.UploadSessionFinish(files.NewUploadSessionFinishArg(cursor, commit),
		bytes.NewReader(spec.Data[offset:]))
	if err != nil {
		return storage.File{}, fmt.Errorf("failed to finish upload session: %w", err)
	}

	return storage.File{ID: meta.Id, Name: meta.Name}, nil
}
