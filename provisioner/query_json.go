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
	"encoding/json"
	"time"

	"folderlink/platform/connectors/base"
)

const (
	// FetchXMLParameter is the input parameter holding the query.
	FetchXMLParameter = "fetchxml"

	// JSONParameter is the output parameter that receives the result.
	JSONParameter = "json"
)

// ErrInvalidFetchXML is returned when the query input is absent or not a
// string.
var ErrInvalidFetchXML = &base.PluginError{Message: "FetchXML input parameter is missing or invalid."}

// RecordQuerier runs a read query against the record store.
type RecordQuerier interface {
	RetrieveMultiple(ctx context.Context, query string) ([]map[string]any, error)
}

// QueryToJSON runs the query in input[FetchXMLParameter] and returns the
// matching records as a compact JSON array of attribute maps.
func QueryToJSON(ctx context.Context, q RecordQuerier, input map[string]any) (string, error) {
	query, ok := input[FetchXMLParameter].(string)
	if !ok {
		return "", ErrInvalidFetchXML
	}

	// Store errors reach the host unchanged.
	records, err := q.RetrieveMultiple(ctx, query)
	if err != nil {
		return "", err
	}

	list := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(rec))
		for k, v := range rec {
			row[k] = flattenValue(v)
		}
		list = append(list, row)
	}

	data, err := json.Marshal(list)
	if err != nil {
		return "", base.NewPluginError(err)
	}
	return string(data), nil
}

// flattenValue turns driver values into plain JSON scalars.
func flattenValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
