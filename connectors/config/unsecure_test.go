// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUnsecure(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Settings
	}{
		{
			name: "empty",
			raw:  "",
			want: nil,
		},
		{
			name: "whitespace only",
			raw:  "  \t ",
			want: nil,
		},
		{
			name: "two keys",
			raw:  "Account=a;Container=c",
			want: Settings{{Key: "Account", Value: "a"}, {Key: "Container", Value: "c"}},
		},
		{
			name: "trimmed and empty entries skipped",
			raw:  " Account = a ;; ;Container=c;",
			want: Settings{{Key: "Account", Value: "a"}, {Key: "Container", Value: "c"}},
		},
		{
			name: "split on first equals",
			raw:  "Endpoint=http://h/?x=y",
			want: Settings{{Key: "Endpoint", Value: "http://h/?x=y"}},
		},
		{
			name: "entry without equals ignored",
			raw:  "junk;Container=c",
			want: Settings{{Key: "Container", Value: "c"}},
		},
		{
			name: "empty key ignored",
			raw:  "=v;Container=c",
			want: Settings{{Key: "Container", Value: "c"}},
		},
		{
			name: "empty value kept",
			raw:  "Container=",
			want: Settings{{Key: "Container", Value: ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseUnsecure(tt.raw))
		})
	}
}

func TestSettings_Lookup(t *testing.T) {
	s := ParseUnsecure("storageaccount=first;CONTAINER=c;Account=second")

	v, ok := s.Lookup("Account", "StorageAccount")
	assert.True(t, ok)
	assert.Equal(t, "second", v, "later entry wins")

	assert.Equal(t, "c", s.Get("container"))

	_, ok = s.Lookup("Timeout")
	assert.False(t, ok)
	assert.Empty(t, s.Get("Timeout"))

	var empty Settings
	_, ok = empty.Lookup("Account")
	assert.False(t, ok)
}
