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

import "testing"

func TestRedactor_Redact(t *testing.T) {
	r := NewRedactor().With("?sv=2023-11-03&ss=b&sig=S3cr3t%3D", "  ")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "literal secret with question mark",
			in:   "token ?sv=2023-11-03&ss=b&sig=S3cr3t%3D end",
			want: "token " + Redacted + " end",
		},
		{
			name: "literal secret without question mark",
			in:   "token sv=2023-11-03&ss=b&sig=S3cr3t%3D",
			want: "token " + Redacted,
		},
		{
			name: "unregistered signature",
			in:   "sv=2022-01-01&sig=other&se=2030",
			want: "sv=2022-01-01&sig=" + Redacted + "&se=2030",
		},
		{
			name: "blob url query",
			in:   "PUT https://a.blob.core.windows.net/c/f/.keep?sv=1&sp=cw failed",
			want: "PUT https://a.blob.core.windows.net/c/f/.keep?" + Redacted + " failed",
		},
		{
			name: "folder url untouched",
			in:   "https://a.blob.core.windows.net/c/f/",
			want: "https://a.blob.core.windows.net/c/f/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Redact(tt.in); got != tt.want {
				t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactor_NilSafe(t *testing.T) {
	var r *Redactor
	if got := r.Redact("sig=abc"); got != "sig="+Redacted {
		t.Errorf("nil redactor should still mask signatures, got %q", got)
	}
	if got := r.With("x").Redact("x"); got != Redacted {
		t.Errorf("With on nil redactor should register secrets, got %q", got)
	}
}
