package transfer

import (
	"bimvault/internal/backup"
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"bimvault/internal/poll"
	"bimvault/internal/storage"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const downloadChunkSize = 4096

// Downloader is the slice of the bimcloud client the pipeline needs.
type Downloader interface {
	DownloadBackup(ctx context.Context, resourceID, backupID string) (io.ReadCloser, int64, error)
}

// Pipeline mirrors validated backups to destination storage: stream the
// backup out of the model server, match it against the destination
// folder by name, then create or update in place.
type Pipeline struct {
	client Downloader
	store  storage.Store
	clk    poll.Clock
}

func New(client Downloader, store storage.Store, clk poll.Clock) *Pipeline {
	return &Pipeline{client: client, store: store, clk: clk}
}

func (p *Pipeline) Transfer(ctx context.Context, resource model.Resource, backupID string) error {
	timeout := backup.UploadTimeout(resource.Size)

	logger.Log.Info("fetching backup contents", zap.String("backup", backupID))
	data, err := p.download(ctx, resource, backupID, timeout)
	if err != nil {
		return err
	}

	name := resource.Name + resource.Type.Extension()

	files, err := p.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list destination folder: %w", err)
	}

	var fileID string
	for _, f := range files {
		if f.Name == name {
			fileID = f.ID
			break
		}
	}

	uploadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	uploaded, err := p.store.Upload(uploadCtx, storage.UploadSpec{
		Name:        name,
		FileID:      fileID,
		Description: resource.ID,
		Data:        data,
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	logger.Log.Info("successfully uploaded to the cloud", zap.String("file", uploaded.ID))
	return nil
}

// download reads the backup stream in small chunks so a stalled or
// oversized transfer is cut off mid-stream instead of at the end.
func (p *Pipeline) download(ctx context.Context, resource model.Resource, backupID string, timeout time.Duration) ([]byte, error) {
	body, total, err := p.client.DownloadBackup(ctx, resource.ID, backupID)
	if err != nil {
		return nil, fmt.Errorf("failed to download backup: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(body)

	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}

	start := p.clk.Now()
	lastUpdate := start
	chunk := make([]byte, downloadChunkSize)
	var downloaded int64

	for {
		n, err := body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			downloaded += int64(n)

			now := p.clk.Now()
			runtime := now.Sub(start)
			if runtime > timeout {
				return nil, fmt.Errorf("download timed out after %s", runtime.Round(time.Second))
			}
			if now.Sub(lastUpdate) >= time.Second {
				logger.Log.Info("receiving backup",
					zap.String("progress", progress(downloaded, total)),
					zap.Duration("runtime", runtime.Round(time.Second)),
					zap.Duration("timeout", timeout))
				lastUpdate = now
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read backup stream: %w", err)
		}
	}

	logger.Log.Info("received backup",
		zap.String("size", humanize.IBytes(uint64(downloaded))),
		zap.Duration("runtime", p.clk.Now().Sub(start).Round(time.Second)))

	return buf.Bytes(), nil
}

func progress(downloaded, total int64) string {
	if total <= 0 {
		return humanize.IBytes(uint64(downloaded))
	}

	return fmt.Sprintf("%d%%", downloaded*100/total)
}
