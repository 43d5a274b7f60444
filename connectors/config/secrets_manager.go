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
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManager is the secure configuration channel. A secret is a flat
// map of string values.
type SecretsManager interface {
	GetSecret(ctx context.Context, secretID string) (map[string]string, error)
}

// secretValueGetter is the subset of the AWS client used here.
type secretValueGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager implements SecretsManager using AWS Secrets Manager
type AWSSecretsManager struct {
	client secretValueGetter
	cache  map[string]*secretCacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	logger *log.Logger
}

type secretCacheEntry struct {
	value     map[string]string
	expiresAt time.Time
}

// AWSSecretsManagerOptions holds options for creating an AWSSecretsManager
type AWSSecretsManagerOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *log.Logger
}

// NewAWSSecretsManager creates a new AWS Secrets Manager client
func NewAWSSecretsManager(ctx context.Context, opts AWSSecretsManagerOptions) (*AWSSecretsManager, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newAWSSecretsManager(secretsmanager.NewFromConfig(cfg), opts), nil
}

func newAWSSecretsManager(client secretValueGetter, opts AWSSecretsManagerOptions) *AWSSecretsManager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[SECRETS_MANAGER] ", log.LstdFlags)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &AWSSecretsManager{
		client: client,
		cache:  make(map[string]*secretCacheEntry),
		ttl:    ttl,
		logger: logger,
	}
}

// GetSecret retrieves a secret from AWS Secrets Manager.
// A JSON object secret is returned as-is; any other string is returned
// under the "value" key.
func (s *AWSSecretsManager) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	s.mu.RLock()
	entry, exists := s.cache[secretARN]
	s.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	s.logger.Printf("Fetching secret %s from AWS Secrets Manager", maskARN(secretARN))

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", maskARN(secretARN), err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskARN(secretARN))
	}
	secretValue := *result.SecretString

	var values map[string]string
	if err := json.Unmarshal([]byte(secretValue), &values); err != nil {
		values = map[string]string{
			"value": secretValue,
		}
	}

	s.mu.Lock()
	s.cache[secretARN] = &secretCacheEntry{
		value:     values,
		expiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	return values, nil
}

// InvalidateSecret removes a secret from the cache, e.g. after a SAS token
// has been rotated.
func (s *AWSSecretsManager) InvalidateSecret(secretARN string) {
	s.mu.Lock()
	delete(s.cache, secretARN)
	s.mu.Unlock()
	s.logger.Printf("Invalidated cache for secret %s", maskARN(secretARN))
}

// maskARN masks the secret ARN for logging (shows only last 8 characters)
func maskARN(arn string) string {
	if len(arn) <= 12 {
		return "***"
	}
	return "..." + arn[len(arn)-8:]
}

// LocalSecretsManager implements SecretsManager from an in-process map.
// Useful for development and tests.
type LocalSecretsManager struct {
	secrets map[string]map[string]string
	mu      sync.RWMutex
	logger  *log.Logger
}

// NewLocalSecretsManager creates a local secrets manager for development
func NewLocalSecretsManager(logger *log.Logger) *LocalSecretsManager {
	if logger == nil {
		logger = log.New(os.Stdout, "[LOCAL_SECRETS] ", log.LstdFlags)
	}
	return &LocalSecretsManager{
		secrets: make(map[string]map[string]string),
		logger:  logger,
	}
}

// GetSecret retrieves a secret from local storage
func (s *LocalSecretsManager) GetSecret(ctx context.Context, secretID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if secret, exists := s.secrets[secretID]; exists {
		return secret, nil
	}

	return nil, fmt.Errorf("secret %s not found in local secrets manager", secretID)
}

// SetSecret stores a secret locally
func (s *LocalSecretsManager) SetSecret(secretID string, value map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[secretID] = value
	s.logger.Printf("Set local secret %s", maskARN(secretID))
}

// EnvSecretsManager implements SecretsManager using environment variables.
// The secret id is used as an environment variable name prefix.
type EnvSecretsManager struct {
	logger *log.Logger
}

// NewEnvSecretsManager creates a secrets manager that reads from environment variables
func NewEnvSecretsManager(logger *log.Logger) *EnvSecretsManager {
	if logger == nil {
		logger = log.New(os.Stdout, "[ENV_SECRETS] ", log.LstdFlags)
	}
	return &EnvSecretsManager{
		logger: logger,
	}
}

// envSecretFields are the suffixes looked up for a prefix, e.g.
// CASE_FOLDERS_SAS_TOKEN for prefix CASE_FOLDERS.
var envSecretFields = []string{
	"SAS_TOKEN", "CONNECTION_STRING", "USERNAME", "PASSWORD",
	"TOKEN", "CLIENT_ID", "CLIENT_SECRET", "VALUE",
}

// GetSecret retrieves values from <PREFIX>_<FIELD> environment variables
func (s *EnvSecretsManager) GetSecret(ctx context.Context, prefix string) (map[string]string, error) {
	values := make(map[string]string)
	for _, field := range envSecretFields {
		if value := os.Getenv(prefix + "_" + field); value != "" {
			values[strings.ToLower(field)] = value
		}
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("no secrets found for prefix %s", prefix)
	}

	s.logger.Printf("Loaded %d secret values from environment for %s", len(values), prefix)
	return values, nil
}

// secureValueKeys are tried in order when a reference names no key.
var secureValueKeys = []string{"sas_token", "value"}

// ResolveSecureRef resolves a secure configuration reference of the form
// "<secret-id>" or "<secret-id>#<key>" to the secret string.
func ResolveSecureRef(ctx context.Context, sm SecretsManager, ref string) (string, error) {
	if sm == nil {
		return "", fmt.Errorf("no secrets manager configured for reference %s", maskARN(ref))
	}

	secretID, key, hasKey := strings.Cut(ref, "#")
	values, err := sm.GetSecret(ctx, secretID)
	if err != nil {
		return "", err
	}

	if hasKey {
		v, ok := values[key]
		if !ok {
			return "", fmt.Errorf("secret %s has no key %q", maskARN(secretID), key)
		}
		return v, nil
	}

	for _, k := range secureValueKeys {
		if v, ok := values[k]; ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("secret %s has none of the keys %v", maskARN(secretID), secureValueKeys)
}
