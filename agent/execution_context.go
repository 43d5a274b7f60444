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

package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"folderlink/platform/provisioner"
)

// maxExecutionContextBytes bounds the webhook body
const maxExecutionContextBytes = 1 << 20

// ExecutionContext is the part of the host's remote execution context the
// agent reads. The host posts it as JSON to the webhook.
type ExecutionContext struct {
	MessageName       string              `json:"MessageName"`
	PrimaryEntityName string              `json:"PrimaryEntityName"`
	PrimaryEntityID   string              `json:"PrimaryEntityId,omitempty"`
	CorrelationID     string              `json:"CorrelationId,omitempty"`
	UserID            string              `json:"UserId,omitempty"`
	InputParameters   ParameterCollection `json:"InputParameters,omitempty"`
	OutputParameters  ParameterCollection `json:"OutputParameters,omitempty"`
}

// ParameterCollection holds input or output parameters. The host sends
// them either as a list of {"key","value"} pairs or as a plain object.
type ParameterCollection map[string]any

type keyValuePair struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// UnmarshalJSON accepts both parameter encodings.
func (p *ParameterCollection) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = nil
		return nil
	}

	out := make(ParameterCollection)
	switch trimmed[0] {
	case '[':
		var pairs []keyValuePair
		if err := json.Unmarshal(trimmed, &pairs); err != nil {
			return fmt.Errorf("invalid parameter list: %w", err)
		}
		for _, kv := range pairs {
			if kv.Key == "" {
				continue
			}
			out[kv.Key] = kv.Value
		}
	case '{':
		var m map[string]any
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return fmt.Errorf("invalid parameter object: %w", err)
		}
		for k, v := range m {
			out[k] = v
		}
	default:
		return fmt.Errorf("parameters must be a list or an object")
	}
	*p = out
	return nil
}

// ParseExecutionContext decodes a webhook body.
func ParseExecutionContext(data []byte) (*ExecutionContext, error) {
	var ec ExecutionContext
	if err := json.Unmarshal(data, &ec); err != nil {
		return nil, fmt.Errorf("invalid execution context: %w", err)
	}
	if strings.TrimSpace(ec.MessageName) == "" {
		return nil, fmt.Errorf("invalid execution context: MessageName is required")
	}
	return &ec, nil
}

// producedID returns the "id" output parameter. A value that is not a UUID
// counts as absent.
func (ec *ExecutionContext) producedID() *uuid.UUID {
	raw, ok := ec.OutputParameters["id"].(string)
	if !ok {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// Event implements provisioner.EventInfo.
func (ec *ExecutionContext) Event() provisioner.TriggerEvent {
	return provisioner.TriggerEvent{
		MessageName:    ec.MessageName,
		ProducedID:     ec.producedID(),
		EntityTypeName: ec.PrimaryEntityName,
	}
}
