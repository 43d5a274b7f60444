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

package base

import (
	"context"
	"time"
)

// HealthChecker is implemented by the record stores and the orphan ledger
// the agent reports on at /health.
type HealthChecker interface {
	Name() string
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// HealthStatus is the outcome of one health probe.
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Latency   time.Duration     `json:"latency"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error,omitempty"`
}

// Probe times ping and reports its outcome. Details are left to the caller.
func Probe(ctx context.Context, ping func(context.Context) error) *HealthStatus {
	start := time.Now()
	err := ping(ctx)
	hs := &HealthStatus{
		Healthy:   err == nil,
		Latency:   time.Since(start),
		Timestamp: time.Now(),
	}
	if err != nil {
		hs.Error = err.Error()
	}
	return hs
}

// Check runs hc and always returns a status. An error from the checker is
// reported as unhealthy.
func Check(ctx context.Context, hc HealthChecker) *HealthStatus {
	hs, err := hc.HealthCheck(ctx)
	switch {
	case err != nil:
		return &HealthStatus{Timestamp: time.Now(), Error: err.Error()}
	case hs == nil:
		return &HealthStatus{Timestamp: time.Now(), Error: hc.Name() + " reported no status"}
	}
	return hs
}
