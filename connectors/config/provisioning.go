// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"folderlink/platform/connectors/base"
)

const (
	// DefaultTimeout bounds the placeholder request when the unsecure
	// configuration does not set Timeout.
	DefaultTimeout = 10 * time.Second

	// MaxTimeout is the largest Timeout accepted. The host transaction stays
	// open for the whole call.
	MaxTimeout = 2 * time.Minute

	// DefaultFolderURLField is the record field that receives the folder URL.
	DefaultFolderURLField = "crad2_folderurl"

	ClientREST = "rest"
	ClientSDK  = "sdk"
)

// ProvisioningConfig is the validated storage target for one invocation.
type ProvisioningConfig struct {
	StorageAccount  string
	ContainerName   string
	CredentialToken string
}

// String omits the credential so the value is safe to log.
func (c ProvisioningConfig) String() string {
	return fmt.Sprintf("account=%s container=%s credential=%s", c.StorageAccount, c.ContainerName, maskToken(c.CredentialToken))
}

// Validate checks the fields in order account, container, credential and
// reports the first one that is blank or unusable.
func (c ProvisioningConfig) Validate() error {
	if strings.TrimSpace(c.StorageAccount) == "" {
		return base.NewConfigError(base.FieldAccount, "Storage account name missing in unsecure configuration.")
	}
	if err := base.ValidatePathSegment(c.StorageAccount); err != nil {
		return &base.ProvisionError{Kind: base.KindConfig, Field: base.FieldAccount,
			Message: "Storage account name is invalid in unsecure configuration", Cause: err}
	}
	if strings.TrimSpace(c.ContainerName) == "" {
		return base.NewConfigError(base.FieldContainer, "Container name missing in unsecure configuration.")
	}
	if err := base.ValidatePathSegment(c.ContainerName); err != nil {
		return &base.ProvisionError{Kind: base.KindConfig, Field: base.FieldContainer,
			Message: "Container name is invalid in unsecure configuration", Cause: err}
	}
	if strings.TrimSpace(c.CredentialToken) == "" {
		return base.NewConfigError(base.FieldCredential, "Secure configuration (SAS token) missing.")
	}
	return nil
}

// NormalizeCredential trims surrounding whitespace and strips exactly one
// leading '?', so "?sv=..." and "sv=..." yield the same token.
func NormalizeCredential(secure string) string {
	return strings.TrimPrefix(strings.TrimSpace(secure), "?")
}

// ResolveProvisioning builds and validates the storage target from the
// unsecure key/value string and the secure credential string. It performs
// no I/O.
func ResolveProvisioning(unsecure, secure string) (*ProvisioningConfig, error) {
	settings := ParseUnsecure(unsecure)

	cfg := &ProvisioningConfig{
		StorageAccount:  settings.Get("Account", "StorageAccount"),
		ContainerName:   settings.Get("Container"),
		CredentialToken: NormalizeCredential(secure),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Options are the optional tuning keys read from the same unsecure string.
type Options struct {
	Timeout        time.Duration
	FolderURLField string
	Compensate     bool
	Endpoint       string
	Client         string
}

// DefaultOptions returns the options used when no optional key is set.
func DefaultOptions() Options {
	return Options{
		Timeout:        DefaultTimeout,
		FolderURLField: DefaultFolderURLField,
		Compensate:     true,
		Client:         ClientREST,
	}
}

// ResolveOptions reads Timeout, FolderUrlField, Compensate, Endpoint and
// Client from the unsecure configuration. Unknown keys are ignored.
func ResolveOptions(unsecure string) (Options, error) {
	settings := ParseUnsecure(unsecure)
	opts := DefaultOptions()

	if raw, ok := settings.Lookup("Timeout"); ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return opts, optionsError("invalid Timeout %q", raw, err)
		}
		if d <= 0 || d > MaxTimeout {
			return opts, optionsError("Timeout %q must be within (0, %s]", raw, nil, MaxTimeout)
		}
		opts.Timeout = d
	}

	if raw, ok := settings.Lookup("FolderUrlField"); ok && raw != "" {
		if err := base.ValidateSQLIdentifier(raw); err != nil {
			return opts, optionsError("invalid FolderUrlField %q", raw, err)
		}
		opts.FolderURLField = raw
	}

	if raw, ok := settings.Lookup("Compensate"); ok && raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, optionsError("invalid Compensate %q", raw, err)
		}
		opts.Compensate = b
	}

	if raw, ok := settings.Lookup("Endpoint"); ok && raw != "" {
		endpoint := strings.TrimRight(raw, "/")
		// Private addresses stay allowed so a local storage emulator works.
		if err := base.ValidateURL(endpoint, base.OperatorEndpointOptions()); err != nil {
			return opts, optionsError("invalid Endpoint %q", raw, err)
		}
		opts.Endpoint = endpoint
	}

	if raw, ok := settings.Lookup("Client"); ok && raw != "" {
		switch strings.ToLower(raw) {
		case ClientREST, ClientSDK:
			opts.Client = strings.ToLower(raw)
		default:
			return opts, optionsError("unknown Client %q", raw, nil)
		}
	}

	return opts, nil
}

func optionsError(format, value string, cause error, extra ...interface{}) *base.ProvisionError {
	args := append([]interface{}{value}, extra...)
	return &base.ProvisionError{
		Kind:    base.KindConfig,
		Field:   base.FieldOptions,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// maskToken shows only the length of a credential.
func maskToken(token string) string {
	if token == "" {
		return "<none>"
	}
	return fmt.Sprintf("<%d chars>", len(token))
}
