// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package provisioner

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"folderlink/platform/connectors/base"
)

func TestGate(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	nilID := uuid.Nil

	tests := []struct {
		name    string
		event   TriggerEvent
		wantID  uuid.UUID
		wantErr error
		kind    base.ErrorKind
	}{
		{name: "create", event: TriggerEvent{MessageName: "Create", ProducedID: &id}, wantID: id},
		{name: "lower case", event: TriggerEvent{MessageName: "create", ProducedID: &id}, wantID: id},
		{name: "upper case", event: TriggerEvent{MessageName: "CREATE", ProducedID: &id}, wantID: id},
		{name: "update", event: TriggerEvent{MessageName: "Update", ProducedID: &id}, wantErr: base.ErrNotApplicable},
		{name: "update without id", event: TriggerEvent{MessageName: "Update"}, wantErr: base.ErrNotApplicable},
		{name: "empty message", event: TriggerEvent{}, wantErr: base.ErrNotApplicable},
		{name: "create without id", event: TriggerEvent{MessageName: "Create"}, kind: base.KindMissingIdentifier},
		{name: "create with nil id", event: TriggerEvent{MessageName: "Create", ProducedID: &nilID}, kind: base.KindMissingIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Gate(tt.event)
			switch {
			case tt.wantErr != nil:
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.Equal(t, uuid.Nil, got)
			case tt.kind != "":
				assert.True(t, base.IsKind(err, tt.kind))
				assert.Equal(t, "No record ID found in context.", err.Error())
			default:
				assert.NoError(t, err)
				assert.Equal(t, tt.wantID, got)
			}
		})
	}
}
