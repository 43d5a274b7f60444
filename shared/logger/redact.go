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

package logger

import (
	"regexp"
	"sort"
	"strings"
)

// Redacted replaces every masked value.
const Redacted = "[REDACTED]"

// sigParam matches the signature of a SAS token, with or without a leading
// separator, so a token that reaches a log line is unusable.
var sigParam = regexp.MustCompile(`(?i)\b(sig|signature)=[^&\s"']*`)

// blobQuery matches the query string of a blob storage URL.
var blobQuery = regexp.MustCompile(`(\.blob\.core\.windows\.net/[^\s"'?]*)\?[^\s"']*`)

// Redactor masks credential-bearing substrings. The zero value masks SAS
// signatures and blob URL query strings only.
type Redactor struct {
	secrets []string
}

// NewRedactor creates a redactor with no literal secrets registered.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// With returns a new redactor that also masks the given literal values.
// Blank values are ignored; longer values are replaced first so a secret
// that contains another is masked whole.
func (r *Redactor) With(secrets ...string) *Redactor {
	next := &Redactor{}
	if r != nil {
		next.secrets = append(next.secrets, r.secrets...)
	}
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		next.secrets = append(next.secrets, s)
		if trimmed := strings.TrimPrefix(s, "?"); trimmed != s && trimmed != "" {
			next.secrets = append(next.secrets, trimmed)
		}
	}
	sort.SliceStable(next.secrets, func(i, j int) bool {
		return len(next.secrets[i]) > len(next.secrets[j])
	})
	return next
}

// Redact returns s with every registered secret, SAS signature and blob URL
// query string masked.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	s = blobQuery.ReplaceAllString(s, "${1}?"+Redacted)
	if r != nil {
		for _, secret := range r.secrets {
			s = strings.ReplaceAll(s, secret, Redacted)
		}
	}
	return sigParam.ReplaceAllString(s, "${1}="+Redacted)
}
