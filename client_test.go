/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return newClient(srv.URL, staticToken("tok"), 5*time.Second)
}

func TestResolveBackendURL(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		host       string
		want       string
		wantErr    bool
	}{
		{"configured wins", "https://api.example.com/", "example.com", "https://api.example.com", false},
		{"fallback on localhost", "", "localhost", localBackend, false},
		{"fallback on loopback ip", "", "127.0.0.1", localBackend, false},
		{"fallback on ipv6 loopback", "", "[::1]", localBackend, false},
		{"missing on remote host", "", "staff.example.com", "", true},
		{"missing on wildcard bind", "", "0.0.0.0", "", true},
		{"bad scheme", "ftp://api.example.com", "localhost", "", true},
		{"no host", "http://", "localhost", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveBackendURL(tt.configured, tt.host)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponseMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"Invalid password"}`, "Invalid password"},
		{"detail list", `{"detail":[{"msg":"field required"},{"msg":"too short"}]}`, "field required; too short"},
		{"message", `{"message":"Category exists"}`, "Category exists"},
		{"detail wins", `{"detail":"A","message":"B"}`, "A"},
		{"raw text", "Bad Gateway\n", "Bad Gateway"},
		{"empty", "", genericFailure},
		{"empty object", `{}`, genericFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, responseMessage([]byte(tt.body)))
		})
	}
}

func TestClient_Login(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"), "login is not authenticated")

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Invalid password"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"abc","role":"admin"}`)
	})

	res, err := c.Login(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", res.Token)
	assert.Equal(t, RoleAdmin, res.Role)

	_, err = c.Login(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, "Invalid password", messageOf(err))
}

func TestClient_LoginRejectsUnknownRole(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token":"abc","role":"guest"}`)
	})

	_, err := c.Login(context.Background(), "secret")
	assert.ErrorIs(t, err, ErrParse)
}

func TestClient_SendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/library/decks-state", r.URL.Path)
		_, _ = io.WriteString(w, `{"categories":["Animals"],"decks":[{"id":7,"name":"Cats","category":"Animals","card_count":2}]}`)
	})

	snap, err := c.DeckState(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Decks, 1)
	assert.Equal(t, ID("7"), snap.Decks[0].ID, "numeric ids decode as text")
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind *Error
		wantMsg  string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Token expired"}`, ErrAuth, "Token expired"},
		{"forbidden", http.StatusForbidden, `{"detail":"Admin only"}`, ErrFetch, "Admin only"},
		{"server error", http.StatusInternalServerError, "", ErrFetch, genericFailure},
		{"malformed payload", http.StatusOK, `{"categories":`, ErrParse, ""},
		{"missing field", http.StatusOK, `{"decks":[]}`, ErrParse, ""},
		{"empty body", http.StatusOK, "", ErrParse, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.DeckState(context.Background())
			require.ErrorIs(t, err, tt.wantKind)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, messageOf(err))
			}
		})
	}
}

func TestClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := newClient(srv.URL, nil, time.Second)

	_, err := c.DeckState(context.Background())
	require.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, "Server unavailable.", messageOf(err))
}

func TestClient_MoveDeckPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/library/decks/a%2Fb/category", r.URL.EscapedPath())

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Food", body["category"])

		_, _ = io.WriteString(w, `{"categories":["Food"],"decks":[]}`)
	})

	_, err := c.MoveDeck(context.Background(), "a/b", "Food")
	require.NoError(t, err)
}

func TestClient_Workbooks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"_id":"w1","workbook_id":"sheet","name":"Party","tabs":[{"tab_name":"A","sheet_gid":1,"deck_id":3},{"tab_name":"B","sheet_gid":2}]},
			{"id":"w2","name":"Legacy","tabs":[{"tab_name":"X","sheet_gid":0}]}
		]`)
	})

	list, err := c.Workbooks(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, ID("w1"), list[0].ID)
	assert.Equal(t, []ID{"3"}, list[0].DeckIDs())
	assert.Equal(t, 1, list[0].DeckTotal())
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet/edit", list[0].SheetURL())

	assert.Equal(t, ID("w2"), list[1].ID, "id falls back to the plain id field")
	assert.Equal(t, 1, list[1].DeckTotal())
	assert.Empty(t, list[1].SheetURL())
}

func TestClient_MessageReplies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/workbooks/w1/reload":
			_, _ = io.WriteString(w, `{"message":"Reloaded 3 tabs."}`)
		case "/auth/request-admin-reset":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Workbook not found"}`)
		}
	})

	msg, err := c.ReloadWorkbook(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, "Reloaded 3 tabs.", msg)

	msg, err = c.RequestAdminReset(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msg)

	_, err = c.DeleteWorkbook(context.Background(), "nope")
	require.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, "Workbook not found", messageOf(err))
}

func TestClient_ResetAdminPasswordIsUnauthenticated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/reset-admin-password", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.ResetAdminPassword(context.Background(), "t", "pw"))
}

func TestIDUnmarshal(t *testing.T) {
	var ids []ID
	require.NoError(t, json.Unmarshal([]byte(`["a", 12, 3.5, null]`), &ids))
	assert.Equal(t, []ID{"a", "12", "3.5", ""}, ids)

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}
