// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package azureblob

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folderlink/platform/connectors/base"
	"folderlink/platform/connectors/config"
)

const testCredential = "sv=2023-11-03&ss=b&srt=o&sp=cw&sig=AbC%2Fsecret%3D"

// recordedRequest is what the fake blob service saw.
type recordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

type fakeBlobService struct {
	server *httptest.Server
	hits   atomic.Int32

	mu       sync.Mutex
	requests []recordedRequest

	handler func(w http.ResponseWriter, r *http.Request)
}

func newFakeBlobService(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *fakeBlobService {
	t.Helper()
	f := &fakeBlobService{handler: handler}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     body,
		})
		f.mu.Unlock()
		f.handler(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeBlobService) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeBlobService) ref() *FolderReference {
	cfg := &config.ProvisioningConfig{StorageAccount: "acct", ContainerName: "cont", CredentialToken: testCredential}
	return NewFolderReferenceAt(f.server.URL+"/acct", cfg, testRecordID)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRESTStore_CreatePlaceholder(t *testing.T) {
	svc := newFakeBlobService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-request-id", "req-1")
		w.Header().Set("ETag", `"0x8D"`)
		w.WriteHeader(http.StatusCreated)
	})
	store := NewRESTStore(RESTConfig{Logger: quietLogger()})

	result, err := store.CreatePlaceholder(context.Background(), svc.ref(), testCredential)
	require.NoError(t, err)
	assert.Equal(t, &PlaceholderResult{StatusCode: http.StatusCreated, RequestID: "req-1", ETag: `"0x8D"`}, result)

	require.EqualValues(t, 1, svc.hits.Load())
	req := svc.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/acct/cont/"+testRecordID.String()+"/.keep", req.Path)
	assert.Equal(t, testCredential, req.RawQuery, "credential is appended verbatim")
	assert.Equal(t, "BlockBlob", req.Header.Get("x-ms-blob-type"))
	assert.Equal(t, "2023-11-03", req.Header.Get("x-ms-version"))
	assert.Equal(t, "text/plain; charset=utf-8", req.Header.Get("Content-Type"))
	assert.Empty(t, req.Body)
}

func TestRESTStore_CreatePlaceholder_AnyTwoHundred(t *testing.T) {
	svc := newFakeBlobService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	store := NewRESTStore(RESTConfig{Logger: quietLogger()})

	result, err := store.CreatePlaceholder(context.Background(), svc.ref(), testCredential)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestRESTStore_CreatePlaceholder_StatusErrors(t *testing.T) {
	for _, code := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			svc := newFakeBlobService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			})
			store := NewRESTStore(RESTConfig{Logger: quietLogger()})

			result, err := store.CreatePlaceholder(context.Background(), svc.ref(), testCredential)
			require.Error(t, err)
			assert.Nil(t, result)

			var pe *base.ProvisionError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, base.KindRemoteCreateFailed, pe.Kind)
			assert.Equal(t, code, pe.StatusCode)
			assert.Equal(t, http.StatusText(code), pe.Reason)
			assert.False(t, pe.Timeout)
			assert.NotContains(t, err.Error(), "sig=")
			assert.EqualValues(t, 1, svc.hits.Load(), "no retry")
		})
	}
}

func TestRESTStore_CreatePlaceholder_Timeout(t *testing.T) {
	svc := newFakeBlobService(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	store := NewRESTStore(RESTConfig{Timeout: 50 * time.Millisecond, Logger: quietLogger()})

	start := time.Now()
	_, err := store.CreatePlaceholder(context.Background(), svc.ref(), testCredential)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var pe *base.ProvisionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, base.KindRemoteCreateFailed, pe.Kind)
	assert.True(t, pe.Timeout)
	assert.NotContains(t, err.Error(), "sig=")
}

func TestRESTStore_CreatePlaceholder_TransportError(t *testing.T) {
	svc := newFakeBlobService(t, func(w http.ResponseWriter, r *http.Request) {})
	ref := svc.ref()
	svc.server.Close()

	store := NewRESTStore(RESTConfig{Logger: quietLogger()})
	_, err := store.CreatePlaceholder(context.Background(), ref, testCredential)
	require.Error(t, err)
	assert.True(t, base.IsKind(err, base.KindRemoteCreateFailed))
	assert.NotContains(t, err.Error(), "sig=")
	assert.NotContains(t, err.Error(), testCredential)
}

func TestRESTStore_DeletePlaceholder(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "accepted", status: http.StatusAccepted},
		{name: "already gone", status: http.StatusNotFound},
		{name: "forbidden", status: http.StatusForbidden, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeBlobService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			store := NewRESTStore(RESTConfig{Logger: quietLogger()})

			err := store.DeletePlaceholder(context.Background(), svc.ref(), testCredential)
			if tt.wantErr {
				require.Error(t, err)
				var ce *base.ConnectorError
				assert.True(t, errors.As(err, &ce))
			} else {
				assert.NoError(t, err)
			}

			req := svc.last()
			assert.Equal(t, http.MethodDelete, req.Method)
			assert.Equal(t, "/acct/cont/"+testRecordID.String()+"/.keep", req.Path)
			assert.Equal(t, "2023-11-03", req.Header.Get("x-ms-version"))
		})
	}
}

func TestReasonPhrase(t *testing.T) {
	custom := &http.Response{StatusCode: 404, Status: "404 The specified container does not exist."}
	assert.Equal(t, "The specified container does not exist.", reasonPhrase(custom))

	bare := &http.Response{StatusCode: 503, Status: "503"}
	assert.Equal(t, "Service Unavailable", reasonPhrase(bare))
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, isTimeout(context.DeadlineExceeded))
	assert.False(t, isTimeout(context.Canceled))
	assert.False(t, isTimeout(errors.New("boom")))
}
