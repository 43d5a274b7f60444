// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package provisioner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folderlink/platform/connectors/base"
	"folderlink/platform/connectors/records"
	"folderlink/platform/shared/logger"
)

var (
	_ DataWriter    = (*records.MemoryWriter)(nil)
	_ DataWriter    = (*records.SQLWriter)(nil)
	_ DataWriter    = (*records.DataverseWriter)(nil)
	_ DataWriter    = (*records.MongoWriter)(nil)
	_ RecordQuerier = (*records.SQLWriter)(nil)
	_ RecordQuerier = (*records.DataverseWriter)(nil)
	_ Tracer        = (*logger.TraceSink)(nil)
)

func TestRun_WithMemoryRecordStore(t *testing.T) {
	store := records.NewMemoryWriter()
	p := newTestProvisioner(scenarioUnsecure, scenarioSecure, &fakeStore{}, nil)
	id := scenarioID

	t.Run("record missing", func(t *testing.T) {
		_, err := p.Run(context.Background(), createHost(&id, store, nil))
		require.Error(t, err)
		assert.True(t, base.IsKind(err, base.KindLinkUpdateFailed))
		assert.True(t, errors.Is(err, records.ErrNotFound))
	})

	t.Run("record present", func(t *testing.T) {
		store.Put("incident", id, map[string]any{"title": "Printer on fire"})
		result, err := p.Run(context.Background(), createHost(&id, store, nil))
		require.NoError(t, err)

		rec, ok := store.Get("incident", id)
		require.True(t, ok)
		assert.Equal(t, result.Folder.FolderURL, rec["crad2_folderurl"])
		assert.Equal(t, "Printer on fire", rec["title"])
	})
}

func TestStaticEvent(t *testing.T) {
	id := scenarioID
	ev := StaticEvent{MessageName: "Create", ProducedID: &id, EntityTypeName: "incident"}
	assert.Equal(t, TriggerEvent{MessageName: "Create", ProducedID: &id, EntityTypeName: "incident"}, ev.Event())
}

func TestResult_Skipped(t *testing.T) {
	assert.True(t, (&Result{State: StateIdle}).Skipped())
	assert.False(t, (&Result{State: StateFailed, Reached: StateIdle}).Skipped())
}
