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
	"strings"

	"github.com/google/uuid"

	"folderlink/platform/connectors/base"
)

// CreateMessage is the message name of a record creation.
const CreateMessage = "Create"

// Gate decides whether ev should be provisioned. It returns
// base.ErrNotApplicable for anything but a creation, and a
// KindMissingIdentifier error for a creation without a usable produced id.
func Gate(ev TriggerEvent) (uuid.UUID, error) {
	if !strings.EqualFold(ev.MessageName, CreateMessage) {
		return uuid.Nil, base.ErrNotApplicable
	}
	// The nil UUID would put every such record in the same folder.
	if ev.ProducedID == nil || *ev.ProducedID == uuid.Nil {
		return uuid.Nil, &base.ProvisionError{
			Kind:    base.KindMissingIdentifier,
			Message: "No record ID found in context.",
		}
	}
	return *ev.ProducedID, nil
}
