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

package provisioner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"folderlink/platform/connectors/azureblob"
	"folderlink/platform/connectors/base"
	"folderlink/platform/connectors/config"
	"folderlink/platform/shared/logger"
)

// Config configures a Provisioner for one plugin registration.
type Config struct {
	// Registration names the plugin registration in log entries.
	Registration string

	// UnsecureConfig is the key=value; string of the registration.
	UnsecureConfig string

	// SecureConfig is the SAS credential, with or without a leading '?'.
	SecureConfig string

	// Store replaces the placeholder store selected by the Client option.
	Store azureblob.PlaceholderStore

	Logger *logger.Logger

	// ConnectorLogger receives the storage client's diagnostics.
	ConnectorLogger *log.Logger
}

// Provisioner creates the blob folder of a newly created record and links
// its URL back onto the record. It holds no state between invocations and
// is safe for concurrent use.
type Provisioner struct {
	registration    string
	unsecure        string
	secure          string
	store           azureblob.PlaceholderStore
	logger          *logger.Logger
	connectorLogger *log.Logger
}

// New creates a Provisioner. The configuration strings are not validated
// until Run, so a broken registration fails the invocation instead of
// the host.
func New(cfg Config) *Provisioner {
	if cfg.Logger == nil {
		cfg.Logger = logger.New("provisioner")
	}
	if cfg.ConnectorLogger == nil {
		cfg.ConnectorLogger = log.New(os.Stdout, "[AZUREBLOB] ", log.LstdFlags)
	}
	return &Provisioner{
		registration:    cfg.Registration,
		unsecure:        cfg.UnsecureConfig,
		secure:          cfg.SecureConfig,
		store:           cfg.Store,
		logger:          cfg.Logger,
		connectorLogger: cfg.ConnectorLogger,
	}
}

// invocation carries the per-call state of Run.
type invocation struct {
	host          Host
	log           *logger.Logger
	correlationID string
	result        *Result
}

// Run gates the triggering event, resolves the storage target, creates the
// placeholder blob and writes the folder URL onto the record.
//
// A non-create event returns a skipped Result and a nil error. Every other
// failure is returned as a single *base.PluginError whose cause is the
// classified *base.ProvisionError.
func (p *Provisioner) Run(ctx context.Context, host Host) (result *Result, err error) {
	inv := &invocation{
		host:          host,
		log:           p.logger.WithSecrets(p.secure),
		correlationID: uuid.NewString(),
		result:        &Result{State: StateIdle, Reached: StateIdle},
	}
	result = inv.result

	defer func() {
		if r := recover(); r != nil {
			err = p.fail(inv, &base.ProvisionError{
				Kind:    base.KindUnexpected,
				Message: fmt.Sprintf("panic during provisioning: %v", r),
			})
		}
	}()

	if err := host.validate(); err != nil {
		return result, p.fail(inv, err)
	}

	ev := host.EventInfo.Event()
	id, err := Gate(ev)
	if errors.Is(err, base.ErrNotApplicable) {
		inv.log.Debug(p.registration, inv.correlationID, "Skipping event that is not a creation", map[string]interface{}{
			"message_name": ev.MessageName,
		})
		return result, nil
	}
	if err != nil {
		return result, p.fail(inv, err)
	}
	host.trace("Record ID: %s", id)
	result.advance(StateGated)

	cfg, err := config.ResolveProvisioning(p.unsecure, p.secure)
	if err != nil {
		return result, p.fail(inv, err)
	}
	opts, err := config.ResolveOptions(p.unsecure)
	if err != nil {
		return result, p.fail(inv, err)
	}
	result.advance(StateConfigured)

	ref := azureblob.NewFolderReferenceAt(opts.Endpoint, cfg, id)
	result.Folder = ref

	store := p.store
	if store == nil {
		store = azureblob.NewPlaceholderStore(opts, p.connectorLogger)
	}

	host.trace("Creating blob at URL: %s", ref.PlaceholderURL())
	start := time.Now()
	placeholder, err := store.CreatePlaceholder(ctx, ref, cfg.CredentialToken)
	result.PlaceholderDuration = time.Since(start)
	if err != nil {
		host.trace("%s", inv.log.Redact(err.Error()))
		return result, p.fail(inv, err)
	}
	result.Placeholder = placeholder
	result.advance(StateProvisioned)

	inv.log.InfoWithDuration(p.registration, inv.correlationID, "Placeholder created",
		float64(result.PlaceholderDuration.Microseconds())/1000, map[string]interface{}{
			"container":   ref.ContainerName,
			"blob_path":   ref.BlobPath,
			"status_code": placeholder.StatusCode,
			"request_id":  placeholder.RequestID,
		})

	fields := map[string]any{opts.FolderURLField: ref.FolderURL}
	if err := host.DataWriter.Update(ctx, ev.EntityTypeName, id, fields); err != nil {
		linkErr := &base.ProvisionError{
			Kind:    base.KindLinkUpdateFailed,
			Message: fmt.Sprintf("Failed to write folder URL to %s on %s %s", opts.FolderURLField, ev.EntityTypeName, id),
			Cause:   err,
		}
		if !opts.Compensate {
			return result, p.fail(inv, linkErr)
		}
		return result, p.fail(inv, p.compensate(ctx, inv, store, ref, cfg.CredentialToken, linkErr))
	}
	result.advance(StateLinked)

	host.trace("Folder created and FolderUrl updated to: %s", ref.FolderURL)
	inv.log.Info(p.registration, inv.correlationID, "Folder linked to record", map[string]interface{}{
		"entity":     ev.EntityTypeName,
		"record_id":  id.String(),
		"field":      opts.FolderURLField,
		"folder_url": ref.FolderURL,
	})
	return result, nil
}

// compensate deletes the placeholder after a failed write-back. It returns
// linkErr when the delete succeeds and a KindOrphanedPlaceholder error when
// it does not.
func (p *Provisioner) compensate(ctx context.Context, inv *invocation, store azureblob.PlaceholderStore,
	ref *azureblob.FolderReference, credential string, linkErr *base.ProvisionError) error {
	// The delete runs even if the caller has given up on the invocation.
	delErr := store.DeletePlaceholder(context.WithoutCancel(ctx), ref, credential)
	if delErr == nil {
		inv.result.Compensated = true
		inv.log.Warn(p.registration, inv.correlationID, "Placeholder removed after failed write-back", map[string]interface{}{
			"container": ref.ContainerName,
			"blob_path": ref.BlobPath,
		})
		return linkErr
	}

	blobPath := ref.ContainerName + "/" + ref.BlobPath
	inv.log.Error(p.registration, inv.correlationID, "Compensating delete failed", map[string]interface{}{
		"blob_path": blobPath,
		"error":     delErr,
	})
	return &base.ProvisionError{
		Kind:     base.KindOrphanedPlaceholder,
		BlobPath: blobPath,
		Message:  fmt.Sprintf("placeholder %s was left without a record link (delete failed: %v)", blobPath, delErr),
		Cause:    linkErr,
	}
}

// fail logs err, traces it to the host and wraps it as the PluginError the
// host sees.
func (p *Provisioner) fail(inv *invocation, err error) error {
	var pe *base.ProvisionError
	if !errors.As(err, &pe) {
		pe = &base.ProvisionError{Kind: base.KindUnexpected, Cause: err}
		err = pe
	}
	inv.result.State = StateFailed

	fields := map[string]interface{}{
		"kind":  string(pe.Kind),
		"stage": string(inv.result.Reached),
	}
	if pe.Field != "" {
		fields["field"] = string(pe.Field)
	}
	if pe.Timeout {
		fields["timeout"] = true
	}
	if inv.result.Folder != nil {
		fields["blob_path"] = inv.result.Folder.BlobPath
	}
	inv.log.ErrorWithCode(p.registration, inv.correlationID, "Provisioning failed", pe.StatusCode, err, fields)
	inv.host.trace("%s", inv.log.Redact("Exception in provisioning: "+err.Error()))

	return base.NewPluginError(err)
}
