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

package records

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/google/uuid"

	"folderlink/platform/connectors/base"
)

// DefaultWebAPIVersion is the Dataverse Web API version used in request paths
const DefaultWebAPIVersion = "v9.2"

// TokenSource supplies the bearer token for Web API calls. Acquiring it is
// the caller's concern.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns the token
func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no access token configured")
	}
	return string(s), nil
}

// CredentialToken is a TokenSource backed by an Azure token credential,
// which caches and refreshes tokens itself.
type CredentialToken struct {
	Credential azcore.TokenCredential
	Scope      string
}

// NewCredentialToken scopes cred to the organization at baseURL.
func NewCredentialToken(cred azcore.TokenCredential, baseURL string) *CredentialToken {
	return &CredentialToken{Credential: cred, Scope: strings.TrimRight(baseURL, "/") + "/.default"}
}

// Token returns a current access token for the organization
func (c *CredentialToken) Token(ctx context.Context) (string, error) {
	tok, err := c.Credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{c.Scope}})
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}

// HTTPClient is an interface for HTTP client operations (enables testing)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DataverseConfig configures a DataverseWriter
type DataverseConfig struct {
	BaseURL    string            // Organization URL, e.g. https://org.crm.dynamics.com
	APIVersion string            // Optional: Web API version (default: v9.2)
	EntitySets map[string]string // Optional: logical name to entity set name
	Tokens     TokenSource
	HTTPClient HTTPClient    // Optional: custom client
	Timeout    time.Duration // Optional: request timeout (default: 30s)
	Logger     *log.Logger
}

// DataverseWriter updates records through the Dataverse Web API
type DataverseWriter struct {
	cfg    DataverseConfig
	client HTTPClient
	logger *log.Logger
}

// NewDataverseWriter creates a DataverseWriter
func NewDataverseWriter(cfg DataverseConfig) (*DataverseWriter, error) {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := base.ValidateURL(cfg.BaseURL, base.OperatorEndpointOptions()); err != nil {
		return nil, fmt.Errorf("invalid Dataverse URL: %w", err)
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("a token source is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultWebAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[RECORDS_DATAVERSE] ", log.LstdFlags)
	}

	return &DataverseWriter{cfg: cfg, client: cfg.HTTPClient, logger: cfg.Logger}, nil
}

// Name returns the writer name
func (w *DataverseWriter) Name() string {
	return "records-dataverse"
}

// EntitySet returns the entity set name for a logical entity name. Without
// a mapping the regular English plural is used ("incident" -> "incidents",
// "opportunity" -> "opportunities", "customeraddress" ->
// "customeraddresses"). Tables whose set name is not that plural, including
// custom tables with a renamed set, need an entity_sets mapping.
func (w *DataverseWriter) EntitySet(entity string) string {
	if set, ok := w.cfg.EntitySets[entity]; ok {
		return set
	}
	return pluralize(entity)
}

func pluralize(name string) string {
	switch {
	case name == "":
		return name
	case strings.HasSuffix(name, "y") && len(name) > 1 && !strings.ContainsRune("aeiou", rune(name[len(name)-2])):
		return name[:len(name)-1] + "ies"
	case strings.HasSuffix(name, "s"), strings.HasSuffix(name, "x"), strings.HasSuffix(name, "z"),
		strings.HasSuffix(name, "ch"), strings.HasSuffix(name, "sh"):
		return name + "es"
	}
	return name + "s"
}

func (w *DataverseWriter) apiURL(path string) string {
	return fmt.Sprintf("%s/api/data/%s/%s", w.cfg.BaseURL, w.cfg.APIVersion, path)
}

func (w *DataverseWriter) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	token, err := w.cfg.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	return req, nil
}

// Update PATCHes fields onto an existing record. If-Match: * keeps the call
// from creating a record that does not exist.
func (w *DataverseWriter) Update(ctx context.Context, entity string, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return base.NewConnectorError(w.Name(), "Update", "no fields to update", nil)
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return base.NewConnectorError(w.Name(), "Update", "failed to encode fields", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	target := w.apiURL(fmt.Sprintf("%s(%s)", url.PathEscape(w.EntitySet(entity)), id))
	req, err := w.newRequest(ctx, http.MethodPatch, target, bytes.NewReader(body))
	if err != nil {
		return base.NewConnectorError(w.Name(), "Update", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("If-Match", "*")

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return base.NewConnectorError(w.Name(), "Update", "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		w.logger.Printf("Updated %s %s in %v", entity, id, time.Since(start))
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusPreconditionFailed:
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	default:
		return base.NewConnectorError(w.Name(), "Update",
			fmt.Sprintf("Web API returned %d: %s", resp.StatusCode, odataErrorMessage(resp.Body)), nil)
	}
}

// fetchEntity is the part of a FetchXML document needed to route it.
type fetchEntity struct {
	Entity struct {
		Name string `xml:"name,attr"`
	} `xml:"entity"`
}

// RetrieveMultiple runs a FetchXML query and returns the records with OData
// annotations removed.
func (w *DataverseWriter) RetrieveMultiple(ctx context.Context, fetchXML string) ([]map[string]any, error) {
	var fetch fetchEntity
	if err := xml.Unmarshal([]byte(fetchXML), &fetch); err != nil || fetch.Entity.Name == "" {
		return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple", "FetchXML has no entity", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	target := w.apiURL(url.PathEscape(w.EntitySet(fetch.Entity.Name)) + "?fetchXml=" + url.QueryEscape(fetchXML))
	req, err := w.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple", "failed to build request", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple",
			fmt.Sprintf("Web API returned %d: %s", resp.StatusCode, odataErrorMessage(resp.Body)), nil)
	}

	var payload struct {
		Value []map[string]any `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, base.NewConnectorError(w.Name(), "RetrieveMultiple", "failed to decode response", err)
	}

	for _, rec := range payload.Value {
		for k := range rec {
			if strings.Contains(k, "@") {
				delete(rec, k)
			}
		}
	}
	if payload.Value == nil {
		payload.Value = []map[string]any{}
	}
	return payload.Value, nil
}

// odataErrorMessage extracts error.message from an OData error body.
func odataErrorMessage(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 8<<10))
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return base.SanitizeLogString(strings.TrimSpace(string(data)))
}
