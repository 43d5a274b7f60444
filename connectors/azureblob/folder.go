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
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"folderlink/platform/connectors/config"
)

const (
	// APIVersion is sent as x-ms-version on every request.
	APIVersion = "2023-11-03"

	// PlaceholderName is the zero-byte blob that makes a folder exist.
	PlaceholderName = ".keep"

	// PlaceholderContentType is the declared type of the empty placeholder body.
	PlaceholderContentType = "text/plain; charset=utf-8"
)

// FolderReference is the storage location derived for one record.
type FolderReference struct {
	RecordID       uuid.UUID
	StorageAccount string
	ContainerName  string
	// FolderName is the record id in lowercase hyphenated form.
	FolderName string
	// BlobPath is FolderName + "/.keep", relative to the container.
	BlobPath string
	// FolderURL is the value written back to the record. It never carries
	// a credential.
	FolderURL string

	serviceURL string
}

// ServiceURL returns the account endpoint without a trailing slash.
func ServiceURL(account string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net", account)
}

// NewFolderReference derives the folder for id in the configured container
// on the public blob endpoint of the account.
func NewFolderReference(cfg *config.ProvisioningConfig, id uuid.UUID) *FolderReference {
	return NewFolderReferenceAt("", cfg, id)
}

// NewFolderReferenceAt is NewFolderReference with the account endpoint
// replaced by endpoint, e.g. a storage emulator. An empty endpoint selects
// the public one.
func NewFolderReferenceAt(endpoint string, cfg *config.ProvisioningConfig, id uuid.UUID) *FolderReference {
	serviceURL := strings.TrimRight(endpoint, "/")
	if serviceURL == "" {
		serviceURL = ServiceURL(cfg.StorageAccount)
	}

	folder := id.String()
	return &FolderReference{
		RecordID:       id,
		StorageAccount: cfg.StorageAccount,
		ContainerName:  cfg.ContainerName,
		FolderName:     folder,
		BlobPath:       folder + "/" + PlaceholderName,
		FolderURL:      fmt.Sprintf("%s/%s/%s/", serviceURL, cfg.ContainerName, folder),
		serviceURL:     serviceURL,
	}
}

// ServiceURL returns the endpoint the reference was derived against.
func (f *FolderReference) ServiceURL() string {
	return f.serviceURL
}

// PlaceholderURL is the placeholder blob URL without a credential.
func (f *FolderReference) PlaceholderURL() string {
	return fmt.Sprintf("%s/%s/%s", f.serviceURL, f.ContainerName, f.BlobPath)
}

// SignedPlaceholderURL appends the credential verbatim as the query string.
func (f *FolderReference) SignedPlaceholderURL(credential string) string {
	return f.PlaceholderURL() + "?" + credential
}

// RedactURL drops the query string of a URL so a signed request can be
// logged or returned in an error.
func RedactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

// PlaceholderResult is what the storage service reported for a successful
// placeholder upload.
type PlaceholderResult struct {
	StatusCode int
	RequestID  string
	ETag       string
}

// PlaceholderStore creates and removes the placeholder blob of a folder.
// Errors from CreatePlaceholder are *base.ProvisionError values of kind
// KindRemoteCreateFailed.
type PlaceholderStore interface {
	CreatePlaceholder(ctx context.Context, ref *FolderReference, credential string) (*PlaceholderResult, error)
	DeletePlaceholder(ctx context.Context, ref *FolderReference, credential string) error
}

// NewPlaceholderStore returns the store selected by opts.Client, bounded by
// opts.Timeout.
func NewPlaceholderStore(opts config.Options, logger *log.Logger) PlaceholderStore {
	if opts.Client == config.ClientSDK {
		return NewSDKStore(SDKConfig{Timeout: opts.Timeout, Logger: logger})
	}
	return NewRESTStore(RESTConfig{Timeout: opts.Timeout, Logger: logger})
}
