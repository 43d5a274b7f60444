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
	"time"

	"github.com/google/uuid"

	"folderlink/platform/connectors/azureblob"
)

// TriggerEvent is what the host reports about the operation that invoked
// the plugin.
type TriggerEvent struct {
	MessageName    string
	ProducedID     *uuid.UUID
	EntityTypeName string
}

// EventInfo exposes the triggering event.
type EventInfo interface {
	Event() TriggerEvent
}

// Tracer is a write-only diagnostic sink supplied by the host.
type Tracer interface {
	Trace(format string, args ...interface{})
}

// DataWriter updates fields on an existing record.
type DataWriter interface {
	Update(ctx context.Context, entityType string, id uuid.UUID, fields map[string]any) error
}

// Host is the capability set the host hands to one invocation.
type Host struct {
	EventInfo  EventInfo
	Tracer     Tracer
	DataWriter DataWriter
}

func (h Host) validate() error {
	if h.EventInfo == nil {
		return errors.New("host provided no event info")
	}
	if h.DataWriter == nil {
		return errors.New("host provided no data writer")
	}
	return nil
}

func (h Host) trace(format string, args ...interface{}) {
	if h.Tracer != nil {
		h.Tracer.Trace(format, args...)
	}
}

// StaticEvent is an EventInfo that always returns the same event.
type StaticEvent TriggerEvent

// Event returns the event.
func (e StaticEvent) Event() TriggerEvent {
	return TriggerEvent(e)
}

// State is a step of the provisioning state machine.
type State string

const (
	StateIdle        State = "idle"
	StateGated       State = "gated"
	StateConfigured  State = "configured"
	StateProvisioned State = "provisioned"
	StateLinked      State = "linked"
	StateFailed      State = "failed"
)

// Result is the outcome of one invocation. State is StateIdle when the
// event was skipped, StateLinked on success and StateFailed otherwise.
// Reached is the last state entered before the outcome was decided.
type Result struct {
	State   State
	Reached State

	// Folder is set once the storage target has been resolved.
	Folder *azureblob.FolderReference

	// Placeholder is what the storage service returned for the upload.
	Placeholder *azureblob.PlaceholderResult

	// PlaceholderDuration is how long the upload took, successful or not.
	PlaceholderDuration time.Duration

	// Compensated reports that the placeholder was removed again after the
	// write-back failed.
	Compensated bool
}

// Skipped reports whether the event was not a creation event.
func (r *Result) Skipped() bool {
	return r.State == StateIdle
}

func (r *Result) advance(s State) {
	r.State = s
	r.Reached = s
}
