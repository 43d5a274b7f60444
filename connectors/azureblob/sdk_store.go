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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"

	"folderlink/platform/connectors/base"
)

// SDKConfig holds configuration for an SDKStore
type SDKConfig struct {
	Timeout   time.Duration      // Optional: per-request bound (default: 10s)
	Transport policy.Transporter // Optional: custom transport (tests, proxies)
	Logger    *log.Logger        // Optional: diagnostic logger
}

// SDKStore creates placeholders through the Azure Blob SDK using a SAS
// credential and no other authentication.
type SDKStore struct {
	timeout   time.Duration
	transport policy.Transporter
	logger    *log.Logger
}

// NewSDKStore creates an SDKStore
func NewSDKStore(cfg SDKConfig) *SDKStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Transport == nil {
		cfg.Transport = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[AZUREBLOB_SDK] ", log.LstdFlags)
	}

	return &SDKStore{
		timeout:   cfg.Timeout,
		transport: cfg.Transport,
		logger:    cfg.Logger,
	}
}

// Name identifies the store in logs and health reports
func (s *SDKStore) Name() string {
	return "azureblob-sdk"
}

func (s *SDKStore) client(ref *FolderReference, credential string) (*azblob.Client, error) {
	endpoint, err := appendSASToken(ref.ServiceURL()+"/", credential)
	if err != nil {
		return nil, err
	}

	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: s.transport,
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
	}
	client, err := azblob.NewClientWithNoCredential(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", ref.ServiceURL(), err)
	}
	return client, nil
}

// CreatePlaceholder uploads the zero-byte placeholder as a block blob.
func (s *SDKStore) CreatePlaceholder(ctx context.Context, ref *FolderReference, credential string) (*PlaceholderResult, error) {
	client, err := s.client(ref, credential)
	if err != nil {
		return nil, &base.ProvisionError{Kind: base.KindRemoteCreateFailed, Message: "Azure Blob creation failed", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	contentType := PlaceholderContentType
	bb := client.ServiceClient().NewContainerClient(ref.ContainerName).NewBlockBlobClient(ref.BlobPath)
	resp, err := bb.Upload(ctx, streaming.NopCloser(bytes.NewReader(nil)), &blockblob.UploadOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	})
	if err != nil {
		err = redactURLError(err)
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			reason := respErr.ErrorCode
			if respErr.RawResponse != nil {
				reason = reasonPhrase(respErr.RawResponse)
			}
			s.logger.Printf("upload %s returned %d %s", ref.PlaceholderURL(), respErr.StatusCode, reason)
			return nil, base.NewRemoteStatusError(respErr.StatusCode, reason)
		}
		if isTimeout(err) {
			return nil, base.NewRemoteTimeoutError(err)
		}
		return nil, &base.ProvisionError{Kind: base.KindRemoteCreateFailed, Message: "Azure Blob creation failed", Cause: err}
	}

	result := &PlaceholderResult{StatusCode: http.StatusCreated}
	if resp.RequestID != nil {
		result.RequestID = *resp.RequestID
	}
	if resp.ETag != nil {
		result.ETag = string(*resp.ETag)
	}
	return result, nil
}

// DeletePlaceholder deletes the placeholder blob. A blob that is already
// gone counts as removed.
func (s *SDKStore) DeletePlaceholder(ctx context.Context, ref *FolderReference, credential string) error {
	client, err := s.client(ref, credential)
	if err != nil {
		return base.NewConnectorError(s.Name(), "DeletePlaceholder", "client setup failed", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := client.DeleteBlob(ctx, ref.ContainerName, ref.BlobPath, nil); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			if respErr.StatusCode == http.StatusNotFound {
				return nil
			}
			return base.NewConnectorError(s.Name(), "DeletePlaceholder",
				fmt.Sprintf("delete %s returned %d %s", ref.BlobPath, respErr.StatusCode, respErr.ErrorCode), nil)
		}
		return base.NewConnectorError(s.Name(), "DeletePlaceholder", "delete "+ref.BlobPath+" failed", redactURLError(err))
	}
	return nil
}

func appendSASToken(endpoint, sas string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	sas = strings.TrimPrefix(sas, "?")
	if u.RawQuery != "" {
		u.RawQuery = u.RawQuery + "&" + sas
	} else {
		u.RawQuery = sas
	}
	return u.String(), nil
}
