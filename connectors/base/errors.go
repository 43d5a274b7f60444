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

package base

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a provisioning failure.
type ErrorKind string

const (
	// KindNotApplicable marks a trigger that is not a creation event. It is
	// never surfaced to the host as a failure.
	KindNotApplicable ErrorKind = "NOT_APPLICABLE"

	// KindMissingIdentifier means a creation event carried no record id.
	KindMissingIdentifier ErrorKind = "MISSING_IDENTIFIER"

	// KindConfig means a required configuration value is absent or invalid.
	KindConfig ErrorKind = "CONFIG_ERROR"

	// KindRemoteCreateFailed means the placeholder PUT did not return 2xx,
	// timed out or never reached the storage service.
	KindRemoteCreateFailed ErrorKind = "REMOTE_CREATE_FAILED"

	// KindLinkUpdateFailed means the folder URL could not be written back.
	KindLinkUpdateFailed ErrorKind = "LINK_UPDATE_FAILED"

	// KindOrphanedPlaceholder means the write-back failed and so did the
	// compensating delete. The placeholder still exists.
	KindOrphanedPlaceholder ErrorKind = "ORPHANED_PLACEHOLDER"

	// KindUnexpected wraps any fault outside the taxonomy.
	KindUnexpected ErrorKind = "UNEXPECTED_FAILURE"
)

// ConfigField names the configuration value a KindConfig error refers to.
type ConfigField string

const (
	FieldAccount    ConfigField = "account"
	FieldContainer  ConfigField = "container"
	FieldCredential ConfigField = "credential"
	FieldOptions    ConfigField = "options"
)

// ErrNotApplicable is returned by the trigger gate for events that are not
// record creations. Callers treat it as a silent no-op.
var ErrNotApplicable = &ProvisionError{Kind: KindNotApplicable, Message: "event is not a creation event"}

// ProvisionError is a classified failure from one of the provisioning stages.
type ProvisionError struct {
	Kind ErrorKind

	// Field is set for KindConfig.
	Field ConfigField

	// StatusCode and Reason are set for KindRemoteCreateFailed when the
	// storage service answered.
	StatusCode int
	Reason     string

	// Timeout is set when the remote call exceeded its deadline.
	Timeout bool

	// BlobPath identifies the placeholder for KindOrphanedPlaceholder.
	BlobPath string

	Message string
	Cause   error
}

func (e *ProvisionError) Error() string {
	switch {
	case e.Message == "" && e.Cause != nil:
		return e.Cause.Error()
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	default:
		return e.Message
	}
}

func (e *ProvisionError) Unwrap() error {
	return e.Cause
}

// NewConfigError reports a missing or invalid configuration value.
func NewConfigError(field ConfigField, message string) *ProvisionError {
	return &ProvisionError{Kind: KindConfig, Field: field, Message: message}
}

// NewRemoteStatusError reports a non-2xx answer from the storage service.
func NewRemoteStatusError(statusCode int, reason string) *ProvisionError {
	return &ProvisionError{
		Kind:       KindRemoteCreateFailed,
		StatusCode: statusCode,
		Reason:     reason,
		Message:    fmt.Sprintf("Azure Blob creation failed: %d %s", statusCode, reason),
	}
}

// NewRemoteTimeoutError reports a placeholder request that ran out of time.
func NewRemoteTimeoutError(cause error) *ProvisionError {
	return &ProvisionError{
		Kind:    KindRemoteCreateFailed,
		Timeout: true,
		Message: "Azure Blob creation timed out",
		Cause:   cause,
	}
}

// KindOf returns the kind of the first ProvisionError in err's chain, or
// KindUnexpected when there is none.
func KindOf(err error) ErrorKind {
	var pe *ProvisionError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnexpected
}

// IsKind reports whether err's chain contains a ProvisionError of kind.
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// ConfigFieldOf returns the Field of a KindConfig error in err's chain.
func ConfigFieldOf(err error) (ConfigField, bool) {
	var pe *ProvisionError
	if errors.As(err, &pe) && pe.Kind == KindConfig {
		return pe.Field, true
	}
	return "", false
}

// PluginError is the single failure signal handed back to the host. Its
// message is what the host shows when it rolls back the record creation.
type PluginError struct {
	Message string
	Cause   error
}

func (e *PluginError) Error() string {
	return e.Message
}

func (e *PluginError) Unwrap() error {
	return e.Cause
}

// NewPluginError wraps cause in the uniform "Error in plugin" failure.
func NewPluginError(cause error) *PluginError {
	return &PluginError{
		Message: "Error in plugin: " + cause.Error(),
		Cause:   cause,
	}
}

// ConnectorError wraps a failure of a record store, ledger or storage client
// with the component and operation that produced it.
type ConnectorError struct {
	ConnectorName string
	Operation     string
	Message       string
	Cause         error
}

func (e *ConnectorError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s.%s: %s", e.ConnectorName, e.Operation, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s (cause: %v)", e.ConnectorName, e.Operation, e.Message, e.Cause)
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// NewConnectorError creates a ConnectorError.
func NewConnectorError(connectorName, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		ConnectorName: connectorName,
		Operation:     operation,
		Message:       message,
		Cause:         cause,
	}
}
