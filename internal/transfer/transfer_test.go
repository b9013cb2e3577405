package transfer

import (
	"bimvault/internal/model"
	"bimvault/internal/storage"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	payload []byte
	err     error
}

func (f *fakeDownloader) DownloadBackup(context.Context, string, string) (io.ReadCloser, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}

	return io.NopCloser(bytes.NewReader(f.payload)), int64(len(f.payload)), nil
}

type fakeStore struct {
	files     []storage.File
	listErr   error
	uploaded  []storage.UploadSpec
	uploadErr error
}

func (f *fakeStore) List(context.Context) ([]storage.File, error) {
	return f.files, f.listErr
}

func (f *fakeStore) Upload(_ context.Context, spec storage.UploadSpec) (storage.File, error) {
	f.uploaded = append(f.uploaded, spec)
	if f.uploadErr != nil {
		return storage.File{}, f.uploadErr
	}

	return storage.File{ID: "uploaded-1", Name: spec.Name}, nil
}

// steadyClock stands still, keeping every transfer within budget.
type steadyClock struct{ now time.Time }

func (c *steadyClock) Now() time.Time { return c.now }
func (c *steadyClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

// crawlClock advances a fixed step on every glance, simulating a
// transfer much slower than its budget.
type crawlClock struct {
	now  time.Time
	step time.Duration
}

func (c *crawlClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *crawlClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

func TestTransferUpdatesExistingFile(t *testing.T) {
	resource := model.Resource{ID: "res-1", Type: model.ResourceProject, Name: "Office Tower", Size: 1 << 20}
	payload := bytes.Repeat([]byte{0xAB}, 10240)

	store := &fakeStore{files: []storage.File{
		{ID: "f-other", Name: "Warehouse.BIMProject25"},
		{ID: "f-9", Name: "Office Tower.BIMProject25"},
	}}

	p := New(&fakeDownloader{payload: payload}, store, &steadyClock{now: time.Unix(1000, 0)})
	err := p.Transfer(context.Background(), resource, "b-1")

	require.NoError(t, err)
	require.Len(t, store.uploaded, 1)
	assert.Equal(t, "f-9", store.uploaded[0].FileID)
	assert.Equal(t, "Office Tower.BIMProject25", store.uploaded[0].Name)
	assert.Equal(t, "res-1", store.uploaded[0].Description)
	assert.Equal(t, payload, store.uploaded[0].Data)
}

func TestTransferCreatesWhenNameUnmatched(t *testing.T) {
	resource := model.Resource{ID: "res-1", Type: model.ResourceProject, Name: "Office Tower", Size: 1 << 20}

	store := &fakeStore{files: []storage.File{
		{ID: "f-other", Name: "Office Tower.BIMProject25.bak"},
	}}

	p := New(&fakeDownloader{payload: []byte("data")}, store, &steadyClock{now: time.Unix(1000, 0)})
	err := p.Transfer(context.Background(), resource, "b-1")

	require.NoError(t, err)
	require.Len(t, store.uploaded, 1)
	assert.Empty(t, store.uploaded[0].FileID)
}

func TestTransferUsesLibraryExtension(t *testing.T) {
	resource := model.Resource{ID: "lib-1", Type: model.ResourceLibrary, Name: "Shared Parts", Size: 1 << 10}

	store := &fakeStore{}
	p := New(&fakeDownloader{payload: []byte("data")}, store, &steadyClock{now: time.Unix(1000, 0)})
	err := p.Transfer(context.Background(), resource, "b-1")

	require.NoError(t, err)
	require.Len(t, store.uploaded, 1)
	assert.Equal(t, "Shared Parts.BIMLibrary25", store.uploaded[0].Name)
}

func TestTransferAbortsMidStreamOnTimeout(t *testing.T) {
	// Five chunks at 30s of virtual time per glance blows the 60s floor
	// well before the stream ends.
	resource := model.Resource{ID: "res-1", Type: model.ResourceProject, Name: "Office Tower", Size: 0}
	payload := bytes.Repeat([]byte{0xCD}, 5*downloadChunkSize)

	store := &fakeStore{}
	p := New(&fakeDownloader{payload: payload}, store, &crawlClock{now: time.Unix(1000, 0), step: 30 * time.Second})
	err := p.Transfer(context.Background(), resource, "b-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Empty(t, store.uploaded)
}

func TestTransferPropagatesDownloadFailure(t *testing.T) {
	resource := model.Resource{ID: "res-1", Type: model.ResourceProject, Name: "Office Tower"}

	store := &fakeStore{}
	p := New(&fakeDownloader{err: errors.New("session expired")}, store, &steadyClock{now: time.Unix(1000, 0)})
	err := p.Transfer(context.Background(), resource, "b-1")

	require.Error(t, err)
	assert.Empty(t, store.uploaded)
}

func TestTransferPropagatesUploadFailure(t *testing.T) {
	resource := model.Resource{ID: "res-1", Type: model.ResourceProject, Name: "Office Tower"}

	store := &fakeStore{uploadErr: errors.New("quota exceeded")}
	p := New(&fakeDownloader{payload: []byte("data")}, store, &steadyClock{now: time.Unix(1000, 0)})
	err := p.Transfer(context.Background(), resource, "b-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload backup")
}
