// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package azureblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"folderlink/platform/connectors/base"
)

// DefaultTimeout is the default bound on a single storage request
const DefaultTimeout = 10 * time.Second

// maxDrainBytes limits how much of a response body is read before closing.
const maxDrainBytes = 64 << 10

// HTTPClient is an interface for HTTP client operations (enables testing)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTConfig holds configuration for a RESTStore
type RESTConfig struct {
	HTTPClient HTTPClient    // Optional: custom client (default: http.Client with Timeout)
	Timeout    time.Duration // Optional: per-request bound (default: 10s)
	Logger     *log.Logger   // Optional: diagnostic logger
}

// RESTStore talks to the Blob service REST API directly with a pre-signed
// credential appended to each request URL.
type RESTStore struct {
	client  HTTPClient
	timeout time.Duration
	logger  *log.Logger
}

// NewRESTStore creates a RESTStore
func NewRESTStore(cfg RESTConfig) *RESTStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[AZUREBLOB] ", log.LstdFlags)
	}

	return &RESTStore{
		client:  cfg.HTTPClient,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Name identifies the store in logs and health reports
func (s *RESTStore) Name() string {
	return "azureblob-rest"
}

// CreatePlaceholder uploads the zero-byte placeholder blob with a single
// Put Blob request. Any status outside 2xx is a failure.
func (s *RESTStore) CreatePlaceholder(ctx context.Context, ref *FolderReference, credential string) (*PlaceholderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ref.SignedPlaceholderURL(credential), http.NoBody)
	if err != nil {
		return nil, &base.ProvisionError{
			Kind:    base.KindRemoteCreateFailed,
			Message: "Azure Blob creation failed: invalid request URL " + ref.PlaceholderURL(),
			Cause:   redactURLError(err),
		}
	}
	req.ContentLength = 0
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("x-ms-version", APIVersion)
	req.Header.Set("Content-Type", PlaceholderContentType)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		err = redactURLError(err)
		if isTimeout(err) {
			s.logger.Printf("PUT %s timed out after %s", ref.PlaceholderURL(), time.Since(start))
			return nil, base.NewRemoteTimeoutError(err)
		}
		return nil, &base.ProvisionError{
			Kind:    base.KindRemoteCreateFailed,
			Message: "Azure Blob creation failed",
			Cause:   err,
		}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := reasonPhrase(resp)
		s.logger.Printf("PUT %s returned %d %s", ref.PlaceholderURL(), resp.StatusCode, reason)
		return nil, base.NewRemoteStatusError(resp.StatusCode, reason)
	}

	return &PlaceholderResult{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("x-ms-request-id"),
		ETag:       resp.Header.Get("ETag"),
	}, nil
}

// DeletePlaceholder removes the placeholder blob. A blob that is already
// gone counts as removed.
func (s *RESTStore) DeletePlaceholder(ctx context.Context, ref *FolderReference, credential string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, ref.SignedPlaceholderURL(credential), http.NoBody)
	if err != nil {
		return base.NewConnectorError(s.Name(), "DeletePlaceholder", "invalid request URL", redactURLError(err))
	}
	req.Header.Set("x-ms-version", APIVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return base.NewConnectorError(s.Name(), "DeletePlaceholder", "request failed", redactURLError(err))
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode >= 200 && resp.StatusCode <= 299) {
		return nil
	}
	return base.NewConnectorError(s.Name(), "DeletePlaceholder",
		fmt.Sprintf("delete %s returned %d %s", ref.BlobPath, resp.StatusCode, reasonPhrase(resp)), nil)
}

// reasonPhrase returns the reason phrase the server sent, falling back to
// the standard text for the status code.
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

// isTimeout reports whether err is a deadline or a transport timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// redactURLError strips the signed query from the URL a transport error
// carries in its message.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = RedactURL(urlErr.URL)
	}
	return err
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
	_ = body.Close()
}
