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
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"folderlink/platform/connectors/config"
	"folderlink/platform/provisioner"
	"folderlink/platform/shared/logger"
)

// Plugin is one registration ready to execute.
type Plugin struct {
	Name   string
	Entity string
	Mode   string

	provisioner *provisioner.Provisioner
	reject      provisioner.RejectPlugin
}

// PluginRegistry maps registration names to plugins.
type PluginRegistry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
	logger  *log.Logger
}

// NewPluginRegistry creates an empty registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		plugins: make(map[string]*Plugin),
		logger:  log.New(log.Writer(), "[PLUGIN_REGISTRY] ", log.LstdFlags),
	}
}

// BuildPluginRegistry creates a plugin for every registration. A secret
// reference that cannot be resolved leaves the registration without a
// credential, so its invocations fail with a configuration error instead
// of the agent refusing to start.
func BuildPluginRegistry(ctx context.Context, regs []*config.Registration, sm config.SecretsManager, lg *logger.Logger) (*PluginRegistry, error) {
	r := NewPluginRegistry()
	for _, reg := range regs {
		p := &Plugin{Name: reg.Name, Entity: reg.Entity, Mode: reg.Mode}

		switch reg.Mode {
		case config.ModeProvision:
			secure, err := reg.ResolveSecure(ctx, sm)
			if err != nil {
				r.logger.Printf("Warning: registration %s: secure configuration unavailable: %v", reg.Name, err)
				secure = ""
			}
			p.provisioner = provisioner.New(provisioner.Config{
				Registration:   reg.Name,
				UnsecureConfig: reg.UnsecureConfig,
				SecureConfig:   secure,
				Logger:         lg,
			})
		case config.ModeReject:
			p.reject = provisioner.RejectPlugin{Message: reg.Message}
		case config.ModeQueryJSON:
		default:
			return nil, fmt.Errorf("registration %s has unknown mode %q", reg.Name, reg.Mode)
		}

		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a plugin. Names must be unique.
func (r *PluginRegistry) Register(p *Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.Name]; exists {
		return fmt.Errorf("plugin '%s' already registered", p.Name)
	}
	r.plugins[p.Name] = p
	r.logger.Printf("Registered plugin %s (mode: %s)", p.Name, p.Mode)
	return nil
}

// Get returns the plugin registered under name.
func (r *PluginRegistry) Get(name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Names returns the registered plugin names in order.
func (r *PluginRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
