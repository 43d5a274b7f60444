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
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// WebhookAuth verifies the HS256 bearer token the host attaches to webhook
// deliveries. Issuing tokens is the host's concern.
type WebhookAuth struct {
	secret []byte
	leeway time.Duration
}

// NewWebhookAuth returns nil when secret is empty, which disables checks.
func NewWebhookAuth(secret string) *WebhookAuth {
	if secret == "" {
		return nil
	}
	return &WebhookAuth{secret: []byte(secret), leeway: 30 * time.Second}
}

// Verify validates the Authorization header of r and returns the token
// claims.
func (a *WebhookAuth) Verify(r *http.Request) (jwt.MapClaims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("authorization header required")
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("bearer token required")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(a.leeway))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %v", err)
	}
	return claims, nil
}

// Middleware rejects requests without a valid token. A nil receiver lets
// every request through.
func (a *WebhookAuth) Middleware(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.Verify(r); err != nil {
			sendErrorResponse(w, "unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
