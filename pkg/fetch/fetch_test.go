// pkg/fetch/fetch_test.go
// TEST TYPE: Integration Test
// DEPENDENCIES: httptest server, temp dirs
// PURPOSE: Test resumable downloads, retries, s3 locations and checksums

package fetch_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/arthur-debert/kitman/pkg/fetch"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = []byte(strings.Repeat("rustup-init-binary-", 512))

func serveContent(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "rustup-init", time.Time{}, bytes.NewReader(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient() *fetch.Client {
	return fetch.New(fetch.Options{Retries: 2, Backoff: time.Millisecond})
}

func TestFetchHTTP(t *testing.T) {
	srv := serveContent(t)
	dest := filepath.Join(t.TempDir(), "dl", "rustup-init")

	require.NoError(t, newClient().Fetch(context.Background(), srv.URL+"/rustup-init", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	_, err = os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestFetchHTTPResumesPartFile(t *testing.T) {
	var sawRange atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRange.Store(r.Header.Get("Range"))
		http.ServeContent(w, r, "rustup-init", time.Time{}, bytes.NewReader(payload))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "rustup-init")
	require.NoError(t, os.WriteFile(dest+".part", payload[:100], 0644))

	require.NoError(t, newClient().Fetch(context.Background(), srv.URL, dest))

	assert.Equal(t, "bytes=100-", sawRange.Load())
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFetchHTTPUnsatisfiableRange(t *testing.T) {
	tests := []struct {
		name string
		part []byte
	}{
		{"part already complete", payload},
		{"stale part larger than payload", append(append([]byte{}, payload...), "stale"...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveContent(t)
			dest := filepath.Join(t.TempDir(), "rustup-init")
			require.NoError(t, os.WriteFile(dest+".part", tt.part, 0644))

			require.NoError(t, newClient().Fetch(context.Background(), srv.URL+"/rustup-init", dest))

			got, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestFetchHTTPStatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		status    int
		wantErr   bool
		wantCalls int32
	}{
		{name: "not found is not retried", failures: 100, status: http.StatusNotFound, wantErr: true, wantCalls: 1},
		{name: "server error is retried", failures: 2, status: http.StatusBadGateway, wantCalls: 3},
		{name: "server error exhausts budget", failures: 100, status: http.StatusInternalServerError, wantErr: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				_, _ = w.Write(payload)
			}))
			defer srv.Close()

			err := newClient().Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "f"))
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.KindNetwork, errors.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFetchLocalPath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bundle.zip")
	require.NoError(t, os.WriteFile(src, []byte("zip"), 0644))

	dest := filepath.Join(dir, "out", "bundle.zip")
	require.NoError(t, newClient().Fetch(context.Background(), src, dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "zip", string(got))
}

type fakeS3 struct {
	bucket, key string
	body        []byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(f.body)),
		ContentLength: aws.Int64(int64(len(f.body))),
	}, nil
}

func TestFetchS3(t *testing.T) {
	fake := &fakeS3{body: []byte("[[packages]]\n")}
	client := fetch.New(fetch.Options{S3: fake})
	dest := filepath.Join(t.TempDir(), "distribution-manifest.toml")

	require.NoError(t, client.Fetch(context.Background(), "s3://kit-dist/dist/distribution-manifest.toml", dest))

	assert.Equal(t, "kit-dist", fake.bucket)
	assert.Equal(t, "dist/distribution-manifest.toml", fake.key)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, fake.body, got)
}

func TestParseS3(t *testing.T) {
	_, _, err := fetch.ParseS3("s3://bucket")
	assert.Error(t, err)
	_, _, err = fetch.ParseS3("https://bucket/key")
	assert.Error(t, err)

	b, k, err := fetch.ParseS3("s3://bucket/a/b.toml")
	require.NoError(t, err)
	assert.Equal(t, "bucket", b)
	assert.Equal(t, "a/b.toml", k)
}

func TestVerifySHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, payload, 0644))
	sum := sha256.Sum256(payload)

	assert.NoError(t, fetch.VerifySHA256(path, hex.EncodeToString(sum[:])))
	err := fetch.VerifySHA256(path, strings.Repeat("0", 64))
	assert.True(t, errors.IsErrorCode(err, errors.ErrChecksum))
}
