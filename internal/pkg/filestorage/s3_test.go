package filestorage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/placementdesk/internal/config"
)

type recordedRequest struct {
	Method        string
	Path          string
	Body          string
	ContentLength int64
	ContentType   string
}

// fakeS3 answers every request with the given status and records what it saw.
type fakeS3 struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Body:          string(body),
		ContentLength: r.ContentLength,
		ContentType:   r.Header.Get("Content-Type"),
	})
	status := f.status
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
		if r.Method == http.MethodDelete {
			status = http.StatusNoContent
		}
	}
	if status >= 400 {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
		return
	}
	w.WriteHeader(status)
}

func (f *fakeS3) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestS3(t *testing.T, fake *fakeS3) (*S3Storage, string) {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	cfg.Storage.S3.Endpoint = server.URL
	cfg.Storage.S3.Region = "us-east-1"
	cfg.Storage.S3.AccessKey = "test-access"
	cfg.Storage.S3.SecretKey = "test-secret"

	s, err := NewS3Storage(cfg)
	require.NoError(t, err)
	return s, server.URL
}

// onlyReader hides Seek so the upload takes the buffering path.
type onlyReader struct{ io.Reader }

func TestS3Storage_Put(t *testing.T) {
	tests := []struct {
		name string
		body func(content string) io.Reader
		size int64
	}{
		{
			name: "seekable body",
			body: func(content string) io.Reader { return strings.NewReader(content) },
			size: 11,
		},
		{
			name: "non-seekable body with unknown size",
			body: func(content string) io.Reader { return onlyReader{strings.NewReader(content)} },
			size: 0,
		},
		{
			name: "non-seekable body split across readers",
			body: func(content string) io.Reader {
				return io.MultiReader(strings.NewReader(content[:4]), strings.NewReader(content[4:]))
			},
			size: 11,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeS3{}
			s, endpoint := newTestS3(t, fake)

			name := SubmissionObjectName(7, "offer_letter", "offer.pdf")
			url, err := s.Put(context.Background(), "documents", name, tt.body("hello world"), tt.size, "application/pdf")
			require.NoError(t, err)
			assert.Equal(t, endpoint+"/documents/students/7/offer_letter.pdf", url)

			requests := fake.recorded()
			require.Len(t, requests, 1)
			assert.Equal(t, http.MethodPut, requests[0].Method)
			assert.Equal(t, "/documents/students/7/offer_letter.pdf", requests[0].Path)
			assert.Equal(t, "hello world", requests[0].Body)
			assert.Equal(t, int64(11), requests[0].ContentLength)
			assert.Equal(t, "application/pdf", requests[0].ContentType)
		})
	}
}

func TestS3Storage_Delete(t *testing.T) {
	fake := &fakeS3{}
	s, _ := newTestS3(t, fake)

	require.NoError(t, s.Delete(context.Background(), "documents", "applications/3/offer_letter.png"))

	requests := fake.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodDelete, requests[0].Method)
	assert.Equal(t, "/documents/applications/3/offer_letter.png", requests[0].Path)
}

func TestS3Storage_ErrorsSurface(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	s, _ := newTestS3(t, fake)
	ctx := context.Background()

	_, err := s.Put(ctx, "documents", "students/1/resume.pdf", strings.NewReader("x"), 1, "")
	assert.ErrorContains(t, err, "failed to upload object")

	err = s.Delete(ctx, "documents", "students/1/resume.pdf")
	assert.ErrorContains(t, err, "failed to delete object")
}

func TestNewS3Storage_EndpointScheme(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		useSSL   bool
		want     string
	}{
		{name: "bare host without ssl", endpoint: "minio:9000", want: "http://minio:9000"},
		{name: "bare host with ssl", endpoint: "s3.example.com/", useSSL: true, want: "https://s3.example.com"},
		{name: "explicit scheme kept", endpoint: "https://s3.example.com", want: "https://s3.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Storage.S3.Endpoint = tt.endpoint
			cfg.Storage.S3.Region = "us-east-1"
			cfg.Storage.S3.UseSSL = tt.useSSL

			s, err := NewS3Storage(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.endpoint)
		})
	}
}
