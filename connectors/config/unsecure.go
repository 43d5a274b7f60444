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

import "strings"

// Setting is one key=value entry of an unsecure configuration string.
type Setting struct {
	Key   string
	Value string
}

// Settings holds the entries of an unsecure configuration string in the
// order they appeared.
type Settings []Setting

// ParseUnsecure parses "key1=value1;key2=value2;...". Entries are separated
// by ';', key and value by the first '='. Keys and values are trimmed; empty
// entries and entries without '=' are skipped. An empty key is skipped too.
func ParseUnsecure(raw string) Settings {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var settings Settings
	for _, part := range strings.Split(raw, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		settings = append(settings, Setting{Key: key, Value: strings.TrimSpace(value)})
	}
	return settings
}

// Lookup returns the value of the last entry whose key case-insensitively
// equals any of keys.
func (s Settings) Lookup(keys ...string) (string, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		for _, k := range keys {
			if strings.EqualFold(s[i].Key, k) {
				return s[i].Value, true
			}
		}
	}
	return "", false
}

// Get is Lookup without the presence flag.
func (s Settings) Get(keys ...string) string {
	v, _ := s.Lookup(keys...)
	return v
}
