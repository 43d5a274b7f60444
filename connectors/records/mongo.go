// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package records

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"folderlink/platform/connectors/base"
)

// DefaultConnectTimeout is the default MongoDB connection timeout
const DefaultConnectTimeout = 10 * time.Second

// MongoConfig configures a MongoWriter
type MongoConfig struct {
	URI         string
	Database    string
	IDField     string            // Optional: key field (default: _id)
	Collections map[string]string // Optional: entity to collection (default: entity name)
	Timeout     time.Duration     // Optional: operation timeout (default: 30s)
	Logger      *log.Logger
}

// MongoWriter links folders to documents. The record id is stored as its
// string form.
type MongoWriter struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    MongoConfig
	logger *log.Logger
}

// ConnectMongo connects to MongoDB and verifies the connection
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*MongoWriter, error) {
	if cfg.Database == "" {
		return nil, base.NewConnectorError("records-mongodb", "Connect", "database name is required", nil)
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("folderlink").
		SetConnectTimeout(DefaultConnectTimeout).
		SetRetryWrites(true)

	connectCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, base.NewConnectorError("records-mongodb", "Connect", "failed to connect", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, base.NewConnectorError("records-mongodb", "Connect", "failed to ping", err)
	}

	w := NewMongoWriter(client.Database(cfg.Database), cfg)
	w.client = client
	return w, nil
}

// NewMongoWriter wraps an open database
func NewMongoWriter(db *mongo.Database, cfg MongoConfig) *MongoWriter {
	if cfg.IDField == "" {
		cfg.IDField = "_id"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[RECORDS_MONGODB] ", log.LstdFlags)
	}
	return &MongoWriter{db: db, cfg: cfg, logger: cfg.Logger}
}

// Name returns the writer name
func (w *MongoWriter) Name() string {
	return "records-mongodb"
}

func (w *MongoWriter) collection(entity string) *mongo.Collection {
	name := entity
	if mapped, ok := w.cfg.Collections[entity]; ok {
		name = mapped
	}
	return w.db.Collection(name)
}

// Update sets fields on the document whose key equals id.
func (w *MongoWriter) Update(ctx context.Context, entity string, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return base.NewConnectorError(w.Name(), "Update", "no fields to update", nil)
	}

	set := bson.D{}
	for _, k := range sortedKeys(fields) {
		set = append(set, bson.E{Key: k, Value: fields[k]})
	}

	opCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	result, err := w.collection(entity).UpdateOne(opCtx,
		bson.D{{Key: w.cfg.IDField, Value: id.String()}},
		bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return base.NewConnectorError(w.Name(), "Update", "update failed", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}

	w.logger.Printf("Updated %s %s (%d fields)", entity, id, len(fields))
	return nil
}

// HealthCheck pings the server
func (w *MongoWriter) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	hs := base.Probe(ctx, func(ctx context.Context) error {
		return w.db.Client().Ping(ctx, nil)
	})
	hs.Details = map[string]string{"database": w.db.Name()}
	return hs, nil
}

// Close disconnects a writer created by ConnectMongo
func (w *MongoWriter) Close(ctx context.Context) error {
	if w.client == nil {
		return nil
	}
	return w.client.Disconnect(ctx)
}
