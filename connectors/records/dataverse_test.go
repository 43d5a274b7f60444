// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package records

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folderlink/platform/connectors/base"
)

func newTestDataverse(t *testing.T, handler http.HandlerFunc) *DataverseWriter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	w, err := NewDataverseWriter(DataverseConfig{
		BaseURL:    server.URL + "/",
		EntitySets: map[string]string{"incident": "incidents", "crad2_case": "crad2_cases"},
		Tokens:     StaticToken("tok"),
		Logger:     quietLogger(),
	})
	require.NoError(t, err)
	return w
}

func TestDataverseWriter_Update(t *testing.T) {
	var (
		gotMethod, gotPath, gotAuth, gotIfMatch string
		gotBody                                 map[string]any
	)
	w := newTestDataverse(t, func(rw http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotIfMatch = r.Header.Get("If-Match")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		rw.WriteHeader(http.StatusNoContent)
	})

	err := w.Update(context.Background(), "crad2_case", recordID, map[string]any{"crad2_folderurl": "https://x/"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/data/v9.2/crad2_cases("+recordID.String()+")", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "*", gotIfMatch)
	assert.Equal(t, map[string]any{"crad2_folderurl": "https://x/"}, gotBody)
}

func TestDataverseWriter_Update_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		w := newTestDataverse(t, func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(http.StatusNotFound)
		})
		err := w.Update(context.Background(), "incident", recordID, map[string]any{"f": "v"})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("odata error", func(t *testing.T) {
		w := newTestDataverse(t, func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(rw, `{"error":{"code":"0x80040217","message":"Field is read-only"}}`)
		})
		err := w.Update(context.Background(), "incident", recordID, map[string]any{"f": "v"})
		var ce *base.ConnectorError
		require.True(t, errors.As(err, &ce))
		assert.Contains(t, ce.Message, "400")
		assert.Contains(t, ce.Message, "Field is read-only")
	})

	t.Run("no fields", func(t *testing.T) {
		w := newTestDataverse(t, func(rw http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		assert.Error(t, w.Update(context.Background(), "incident", recordID, nil))
	})
}

func TestDataverseWriter_EntitySet(t *testing.T) {
	w := newTestDataverse(t, func(rw http.ResponseWriter, r *http.Request) {})
	assert.Equal(t, "crad2_cases", w.EntitySet("crad2_case"), "mapping wins")

	tests := map[string]string{
		"account":         "accounts",
		"incident":        "incidents",
		"opportunity":     "opportunities",
		"customeraddress": "customeraddresses",
		"survey":          "surveys",
		"mailbox":         "mailboxes",
		"search":          "searches",
	}
	w = newTestDataverse(t, func(rw http.ResponseWriter, r *http.Request) {})
	w.cfg.EntitySets = nil
	for logical, want := range tests {
		assert.Equal(t, want, w.EntitySet(logical), logical)
	}
}

func TestDataverseWriter_RetrieveMultiple(t *testing.T) {
	var gotPath, gotFetch, gotPrefer string
	w := newTestDataverse(t, func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFetch = r.URL.Query().Get("fetchXml")
		gotPrefer = r.Header.Get("Prefer")
		_, _ = io.WriteString(rw, `{"@odata.context":"x","value":[
			{"@odata.etag":"W/1","incidentid":"a","title":"one","statuscode@OData.Community.Display.V1.FormattedValue":"Active","statuscode":1}
		]}`)
	})

	fetch := `<fetch><entity name="incident"><attribute name="title"/></entity></fetch>`
	got, err := w.RetrieveMultiple(context.Background(), fetch)
	require.NoError(t, err)

	assert.Equal(t, "/api/data/v9.2/incidents", gotPath)
	assert.Equal(t, fetch, gotFetch)
	assert.Empty(t, gotPrefer, "annotations are stripped, so none are requested")
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"incidentid": "a", "title": "one", "statuscode": float64(1)}, got[0])
}

func TestDataverseWriter_RetrieveMultiple_BadFetch(t *testing.T) {
	w := newTestDataverse(t, func(rw http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := w.RetrieveMultiple(context.Background(), "<fetch></fetch>")
	assert.Error(t, err)
	_, err = w.RetrieveMultiple(context.Background(), "not xml")
	assert.Error(t, err)
}

func TestNewDataverseWriter_Validation(t *testing.T) {
	_, err := NewDataverseWriter(DataverseConfig{BaseURL: "ftp://org", Tokens: StaticToken("t")})
	assert.Error(t, err)

	_, err = NewDataverseWriter(DataverseConfig{BaseURL: "https://org.example"})
	assert.Error(t, err)

	_, err = StaticToken("").Token(context.Background())
	assert.Error(t, err)
}

type fakeCredential struct {
	scopes []string
	err    error
}

func (f *fakeCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.scopes = opts.Scopes
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{Token: "aad-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func TestCredentialToken(t *testing.T) {
	cred := &fakeCredential{}
	src := NewCredentialToken(cred, "https://contoso.crm.dynamics.com/")

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aad-token", tok)
	assert.Equal(t, []string{"https://contoso.crm.dynamics.com/.default"}, cred.scopes)

	cred.err = errors.New("AADSTS7000215: invalid client secret")
	_, err = src.Token(context.Background())
	assert.Error(t, err)
}

func TestDataverseWriter_UsesCredentialToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		rw.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	cred := &fakeCredential{}
	w, err := NewDataverseWriter(DataverseConfig{
		BaseURL: server.URL,
		Tokens:  NewCredentialToken(cred, server.URL),
		Logger:  quietLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, w.Update(context.Background(), "incident", recordID, map[string]any{"crad2_folderurl": "x"}))
	assert.Equal(t, "Bearer aad-token", gotAuth)
	assert.Equal(t, []string{server.URL + "/.default"}, cred.scopes)

	cred.err = errors.New("token endpoint unreachable")
	err = w.Update(context.Background(), "incident", recordID, map[string]any{"crad2_folderurl": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token endpoint unreachable")
}
