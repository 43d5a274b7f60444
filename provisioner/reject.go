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

	"folderlink/platform/connectors/base"
)

// DefaultRejectMessage is shown when a RejectPlugin has no message.
const DefaultRejectMessage = "Copilot Agents creation is not allowed in the Default environment."

// RejectPlugin blocks the operation it is registered on, whatever the event.
type RejectPlugin struct {
	Message string
}

// Run always fails, so the host rolls the operation back.
func (r RejectPlugin) Run(host Host) error {
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = DefaultRejectMessage
	}
	if host.EventInfo != nil {
		ev := host.EventInfo.Event()
		host.trace("Rejecting %s of %s", ev.MessageName, ev.EntityTypeName)
	}
	return &base.PluginError{Message: msg}
}
