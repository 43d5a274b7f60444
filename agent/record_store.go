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

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"folderlink/platform/connectors/base"
	"folderlink/platform/connectors/config"
	"folderlink/platform/connectors/records"
	"folderlink/platform/provisioner"
)

// RecordStore is the write-back target together with the optional
// capabilities of its backend.
type RecordStore struct {
	Type   string
	Writer provisioner.DataWriter

	// Querier is nil when the backend cannot serve query_json.
	Querier provisioner.RecordQuerier

	// Health is nil when the backend has no health check.
	Health base.HealthChecker

	// Memory is set for the in-process store so records can be seeded.
	Memory *records.MemoryWriter

	close func(ctx context.Context) error
}

// Close releases the backend's connections.
func (s *RecordStore) Close(ctx context.Context) error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// NewMemoryRecordStore returns an in-process store.
func NewMemoryRecordStore() *RecordStore {
	m := records.NewMemoryWriter()
	return &RecordStore{Type: config.StoreMemory, Writer: m, Memory: m}
}

// OpenRecordStore connects to the backend named by cfg.Type.
func OpenRecordStore(ctx context.Context, cfg config.RecordStoreFileConfig, logger *log.Logger) (*RecordStore, error) {
	switch cfg.Type {
	case config.StoreMemory, "":
		logger.Printf("Using in-memory record store")
		return NewMemoryRecordStore(), nil

	case config.StorePostgres, config.StoreMySQL:
		w, err := records.OpenSQL(ctx, cfg.ConnectionURL, records.SQLConfig{
			Dialect:  records.Dialect(cfg.Type),
			IDColumn: cfg.IDColumn,
			Tables:   cfg.EntitySets,
			Timeout:  cfg.Timeout(),
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Printf("Connected to %s record store", cfg.Type)
		return &RecordStore{
			Type:    cfg.Type,
			Writer:  w,
			Querier: w,
			Health:  w,
			close:   func(context.Context) error { return w.Close() },
		}, nil

	case config.StoreMongoDB:
		w, err := records.ConnectMongo(ctx, records.MongoConfig{
			URI:         cfg.ConnectionURL,
			Database:    cfg.Database,
			IDField:     cfg.IDColumn,
			Collections: cfg.EntitySets,
			Timeout:     cfg.Timeout(),
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Printf("Connected to MongoDB record store (database: %s)", cfg.Database)
		return &RecordStore{Type: cfg.Type, Writer: w, Health: w, close: w.Close}, nil

	case config.StoreDataverse:
		tokens, err := dataverseTokens(cfg)
		if err != nil {
			return nil, err
		}
		w, err := records.NewDataverseWriter(records.DataverseConfig{
			BaseURL:    cfg.ConnectionURL,
			EntitySets: cfg.EntitySets,
			Tokens:     tokens,
			Timeout:    cfg.Timeout(),
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Printf("Using Dataverse record store at %s", cfg.ConnectionURL)
		return &RecordStore{Type: cfg.Type, Writer: w, Querier: w}, nil

	default:
		return nil, fmt.Errorf("unknown record store type: %s", cfg.Type)
	}
}

// dataverseTokens picks the token source for a Dataverse store: a fixed
// access_token when one is configured, a client secret credential when
// tenant_id, client_id and client_secret are all set, and otherwise the
// default Azure credential chain (managed identity, workload identity,
// environment, Azure CLI).
func dataverseTokens(cfg config.RecordStoreFileConfig) (records.TokenSource, error) {
	creds := cfg.Credentials
	if token := creds["access_token"]; token != "" {
		return records.StaticToken(token), nil
	}

	if creds["tenant_id"] != "" && creds["client_id"] != "" && creds["client_secret"] != "" {
		cred, err := azidentity.NewClientSecretCredential(creds["tenant_id"], creds["client_id"], creds["client_secret"], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Dataverse client secret credential: %w", err)
		}
		return records.NewCredentialToken(cred, cfg.ConnectionURL), nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential for Dataverse: %w", err)
	}
	return records.NewCredentialToken(cred, cfg.ConnectionURL), nil
}
