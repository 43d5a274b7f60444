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

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Registration modes
const (
	ModeProvision = "provision"
	ModeReject    = "reject"
	ModeQueryJSON = "query_json"
)

// Record store types
const (
	StoreDataverse = "dataverse"
	StorePostgres  = "postgres"
	StoreMySQL     = "mysql"
	StoreMongoDB   = "mongodb"
	StoreMemory    = "memory"
)

// ServiceFile represents the root structure of the service configuration file
type ServiceFile struct {
	Version       string                            `yaml:"version"`
	Registrations map[string]RegistrationFileConfig `yaml:"registrations,omitempty"`
	RecordStore   RecordStoreFileConfig             `yaml:"record_store"`
	Ledger        LedgerFileConfig                  `yaml:"ledger,omitempty"`
	Secrets       SecretsFileConfig                 `yaml:"secrets,omitempty"`
}

// RegistrationFileConfig is one plugin registration: the step the host
// delivers events for and the configuration strings it was registered with.
type RegistrationFileConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Entity          string `yaml:"entity,omitempty"`
	Mode            string `yaml:"mode"`
	Message         string `yaml:"message,omitempty"`
	UnsecureConfig  string `yaml:"unsecure_config,omitempty"`
	SecureConfig    string `yaml:"secure_config,omitempty"`
	SecureConfigRef string `yaml:"secure_config_ref,omitempty"`
}

// RecordStoreFileConfig selects where folder URLs are written back to.
type RecordStoreFileConfig struct {
	Type          string            `yaml:"type"`
	ConnectionURL string            `yaml:"connection_url,omitempty"`
	Database      string            `yaml:"database,omitempty"`
	IDColumn      string            `yaml:"id_column,omitempty"`
	EntitySets    map[string]string `yaml:"entity_sets,omitempty"`
	Credentials   map[string]string `yaml:"credentials,omitempty"`
	TimeoutMs     int               `yaml:"timeout_ms,omitempty"`
}

// LedgerFileConfig configures the orphaned placeholder ledger.
type LedgerFileConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisURL  string `yaml:"redis_url,omitempty"`
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

// SecretsFileConfig selects the secrets manager used for secure_config_ref.
type SecretsFileConfig struct {
	Provider   string `yaml:"provider,omitempty"`
	Region     string `yaml:"region,omitempty"`
	CacheTTLMs int    `yaml:"cache_ttl_ms,omitempty"`
}

// Timeout returns the record store timeout, 30s when unset.
func (c RecordStoreFileConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Registration is an enabled registration loaded from the service file.
type Registration struct {
	Name            string
	Entity          string
	Mode            string
	Message         string
	UnsecureConfig  string
	SecureConfig    string
	SecureConfigRef string
}

// ResolveSecure returns the secure configuration string, reading it through
// sm when the registration names a secret reference instead of a literal.
func (r *Registration) ResolveSecure(ctx context.Context, sm SecretsManager) (string, error) {
	if r.SecureConfig != "" || r.SecureConfigRef == "" {
		return r.SecureConfig, nil
	}
	return ResolveSecureRef(ctx, sm, r.SecureConfigRef)
}

// YAMLConfigFileLoader loads the service configuration from a YAML file
type YAMLConfigFileLoader struct {
	filePath string
	config   *ServiceFile
}

// NewYAMLConfigFileLoader creates a new YAML config file loader
func NewYAMLConfigFileLoader(filePath string) (*YAMLConfigFileLoader, error) {
	loader := &YAMLConfigFileLoader{
		filePath: filePath,
	}

	if err := loader.reload(); err != nil {
		return nil, err
	}

	return loader, nil
}

// reload reads, expands and validates the configuration file
func (l *YAMLConfigFileLoader) reload() error {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", l.filePath, err)
	}

	config, err := ParseServiceFile(data)
	if err != nil {
		return err
	}

	l.config = config
	return nil
}

// ParseServiceFile expands environment references in data, parses it and
// validates the result.
func ParseServiceFile(data []byte) (*ServiceFile, error) {
	expanded := expandEnvVars(string(data))

	var config ServiceFile
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateServiceFile(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadRegistrations returns the enabled registrations sorted by name
func (l *YAMLConfigFileLoader) LoadRegistrations() ([]*Registration, error) {
	if l.config == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	var regs []*Registration
	for name, fileConfig := range l.config.Registrations {
		if !fileConfig.Enabled {
			continue
		}
		regs = append(regs, &Registration{
			Name:            name,
			Entity:          fileConfig.Entity,
			Mode:            strings.ToLower(fileConfig.Mode),
			Message:         fileConfig.Message,
			UnsecureConfig:  fileConfig.UnsecureConfig,
			SecureConfig:    fileConfig.SecureConfig,
			SecureConfigRef: fileConfig.SecureConfigRef,
		})
	}

	sort.Slice(regs, func(i, j int) bool { return regs[i].Name < regs[j].Name })
	return regs, nil
}

// RecordStore returns the record store section
func (l *YAMLConfigFileLoader) RecordStore() RecordStoreFileConfig {
	if l.config == nil {
		return RecordStoreFileConfig{}
	}
	return l.config.RecordStore
}

// Ledger returns the ledger section
func (l *YAMLConfigFileLoader) Ledger() LedgerFileConfig {
	if l.config == nil {
		return LedgerFileConfig{}
	}
	return l.config.Ledger
}

// Secrets returns the secrets section
func (l *YAMLConfigFileLoader) Secrets() SecretsFileConfig {
	if l.config == nil {
		return SecretsFileConfig{}
	}
	return l.config.Secrets
}

// Reload reloads the configuration file
func (l *YAMLConfigFileLoader) Reload() error {
	return l.reload()
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string
// Supports both ${VAR_NAME} and $VAR_NAME syntax
// Returns empty string for undefined variables
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		// Handle default values: ${VAR_NAME:-default}
		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultVal
	})
}

// ValidateServiceFile validates the structure of a service file
func ValidateServiceFile(config *ServiceFile) error {
	if config.Version == "" {
		return fmt.Errorf("config file must specify a version")
	}

	validModes := map[string]bool{
		ModeProvision: true,
		ModeReject:    true,
		ModeQueryJSON: true,
	}

	for name, reg := range config.Registrations {
		mode := strings.ToLower(reg.Mode)
		if !validModes[mode] {
			return fmt.Errorf("registration '%s' has invalid mode '%s'", name, reg.Mode)
		}
		if reg.SecureConfig != "" && reg.SecureConfigRef != "" {
			return fmt.Errorf("registration '%s' sets both secure_config and secure_config_ref", name)
		}
		if mode == ModeProvision && reg.Entity == "" {
			return fmt.Errorf("registration '%s' must specify an entity", name)
		}
	}

	switch config.RecordStore.Type {
	case StoreDataverse, StorePostgres, StoreMySQL, StoreMongoDB:
		if config.RecordStore.ConnectionURL == "" {
			return fmt.Errorf("record store '%s' must specify a connection_url", config.RecordStore.Type)
		}
	case StoreMemory, "":
	default:
		return fmt.Errorf("invalid record store type '%s'", config.RecordStore.Type)
	}

	if config.Ledger.Enabled && config.Ledger.RedisURL == "" {
		return fmt.Errorf("ledger is enabled but has no redis_url")
	}

	switch config.Secrets.Provider {
	case "", "aws", "env", "local":
	default:
		return fmt.Errorf("invalid secrets provider '%s'", config.Secrets.Provider)
	}

	return nil
}

// GenerateExampleConfigFile generates an example configuration file
func GenerateExampleConfigFile() string {
	return `# folderlink service configuration
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default} syntax

version: "1.0"

registrations:
  # Creates <container>/<record id>/.keep and links the folder URL
  case_folder_create:
    enabled: true
    mode: provision
    entity: incident
    unsecure_config: "Account=${STORAGE_ACCOUNT:-casefiles};Container=${STORAGE_CONTAINER:-cases};Timeout=15s"
    secure_config_ref: ${CASE_FOLDER_SECRET:-CASE_FOLDER}

  # Blocks creation in the default environment
  block_bot_create:
    enabled: false
    mode: reject
    entity: bot
    message: "Copilot Agents creation is not allowed in the Default environment."

  # Runs a query and returns the rows as JSON
  fetch_to_json:
    enabled: false
    mode: query_json

record_store:
  type: ${RECORD_STORE:-postgres}
  connection_url: ${DATABASE_URL}
  id_column: id
  timeout_ms: 30000

ledger:
  enabled: false
  redis_url: ${REDIS_URL:-redis://localhost:6379/0}
  key_prefix: folderlink

secrets:
  provider: ${SECRETS_PROVIDER:-env}
  region: ${AWS_REGION:-us-east-1}
`
}
