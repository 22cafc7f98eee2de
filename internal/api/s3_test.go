package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/pkg/core"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Uploader = (*S3Uploader)(nil)

// putRecorder is a fake S3 endpoint that records PUT requests.
type putRecorder struct {
	mu      sync.Mutex
	status  int
	path    string
	header  http.Header
	payload []byte
}

func (m *putRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.Method == http.MethodPut {
		m.path = req.URL.Path
		m.header = req.Header.Clone()
		m.payload, _ = io.ReadAll(req.Body)
	}
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{"Etag": {"\"etag\""}},
	}, nil
}

func newTestUploader(t *testing.T, rt http.RoundTripper) *S3Uploader {
	t.Helper()
	u, err := NewS3Uploader(context.Background(), config.S3Config{
		Bucket:    "recordings",
		Region:    "eu-central-1",
		Endpoint:  "https://mock.s3.local",
		Prefix:    "/sessions/",
		AccessKey: "AKIA",
		SecretKey: "SECRET",
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
	})
	require.NoError(t, err)
	return u
}

func TestNewS3Uploader_RequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), config.S3Config{})
	assert.Error(t, err)
}

func TestS3Uploader_Key(t *testing.T) {
	u := newTestUploader(t, &putRecorder{})
	assert.Equal(t, "sessions/lab.json.gz", u.Key("/tmp/out/lab.json.gz"))
}

func TestS3Uploader_Upload(t *testing.T) {
	rt := &putRecorder{}
	u := newTestUploader(t, rt)

	path := filepath.Join(t.TempDir(), "lab.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	err := u.Upload(context.Background(), path, core.UploadMetadata{SessionName: "lab", Tag: "bench", Duration: 2, Frames: 60})
	require.NoError(t, err)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Equal(t, "/recordings/sessions/lab.json.gz", rt.path)
	assert.Equal(t, "application/gzip", rt.header.Get("Content-Type"))
	assert.Equal(t, "lab", rt.header.Get("X-Amz-Meta-Session-Name"))
	assert.Equal(t, "60", rt.header.Get("X-Amz-Meta-Frames"))
	assert.Contains(t, string(rt.payload), "hello")
}

func TestS3Uploader_UploadError(t *testing.T) {
	u := newTestUploader(t, &putRecorder{status: http.StatusForbidden})

	path := filepath.Join(t.TempDir(), "lab.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	assert.ErrorContains(t, u.Upload(context.Background(), path, core.UploadMetadata{}), "s3://recordings/sessions/lab.json")
}
