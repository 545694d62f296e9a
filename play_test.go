/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staffSessions(t *testing.T, role Role) *SessionStore {
	t.Helper()

	store := newMemStorage()
	if role != "" {
		require.NoError(t, store.Set(tokenKey, "tok"))
		require.NoError(t, store.Set(roleKey, string(role)))
	}
	return newSessionStore(store)
}

func newTestHub(t *testing.T) (*playHub, *Catalog) {
	t.Helper()

	c, _ := loadedCatalog(t)
	return newPlayHub(&Config{}, c, staffSessions(t, RoleStaff), testRNG()), c
}

func TestPlayHub_FirstLoadSelectsAll(t *testing.T) {
	h, c := newTestHub(t)

	st := h.State()
	assert.Len(t, st.Selected, len(c.Snapshot().Decks))
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, "Word will appear here once play starts", st.Preview)
	assert.True(t, st.Categories["Animals"])
	assert.Equal(t, c.Version(), st.Version)

	require.Nil(t, h.apply(playCommand{Type: "clear"}))
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.State().Selected, "only the first snapshot selects everything")
}

func TestPlayHub_NoCatalogYet(t *testing.T) {
	c := newCatalog(&Config{}, newFakeLibrary())
	h := newPlayHub(&Config{}, c, staffSessions(t, RoleStaff), testRNG())

	assert.Empty(t, h.State().Selected)

	n := h.apply(playCommand{Type: "play"})
	require.NotNil(t, n)
	assert.True(t, n.Error)
	assert.Equal(t, "Select at least one deck first.", n.Message)
}

func TestPlayHub_PlayRun(t *testing.T) {
	h, _ := newTestHub(t)

	require.Nil(t, h.apply(playCommand{Type: "select", IDs: []ID{"1", "missing", "1"}}))
	assert.Equal(t, []ID{"1"}, h.State().Selected)

	require.Nil(t, h.apply(playCommand{Type: "play"}))
	st := h.State()
	assert.Equal(t, StatePlaying, st.State)
	assert.Equal(t, 2, st.PoolSize)
	assert.True(t, st.CanSkip)
	require.NotNil(t, st.Current)
	assert.Equal(t, "Cats", st.Current.DeckName)
	assert.Equal(t, st.Current.Word, st.Preview)
	assert.Contains(t, st.CopyText, "GOAL WORD")

	require.Nil(t, h.apply(playCommand{Type: "skip"}))
	require.Nil(t, h.apply(playCommand{Type: "draw"}))
	require.Nil(t, h.apply(playCommand{Type: "draw"}))

	st = h.State()
	assert.Equal(t, StateExhausted, st.State)
	assert.Nil(t, st.Current)
	assert.Equal(t, "No cards left in this run.", st.Preview)

	require.Nil(t, h.apply(playCommand{Type: "reload"}))
	assert.Equal(t, 2, h.State().Remaining)

	require.Nil(t, h.apply(playCommand{Type: "stop"}))
	assert.Equal(t, StateIdle, h.State().State)

	require.Nil(t, h.apply(playCommand{Type: "reload"}), "reload replays the last selection after stop")
	assert.Equal(t, StatePlaying, h.State().State)
}

func TestPlayHub_Notices(t *testing.T) {
	h, _ := newTestHub(t)

	tests := []struct {
		name    string
		cmd     playCommand
		wantErr bool
		want    string
	}{
		{"unknown deck", playCommand{Type: "toggle_deck", ID: "missing"}, true, "Deck not found."},
		{"bad count", playCommand{Type: "randomize"}, true, "Enter how many decks you want to randomly select."},
		{"reload before play", playCommand{Type: "reload"}, false, "Nothing to reload yet."},
		{"unknown command", playCommand{Type: "dance"}, true, "Unknown command: dance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := h.apply(tt.cmd)
			require.NotNil(t, n)
			assert.Equal(t, tt.wantErr, n.Error)
			assert.Equal(t, tt.want, n.Message)
		})
	}
}

func TestPlayHub_SelectionCommands(t *testing.T) {
	h, _ := newTestHub(t)

	require.Nil(t, h.apply(playCommand{Type: "clear"}))
	require.Nil(t, h.apply(playCommand{Type: "toggle_category", Category: "Animals"}))
	assert.ElementsMatch(t, []ID{"1", "2"}, h.State().Selected)

	require.Nil(t, h.apply(playCommand{Type: "toggle_deck", ID: "3"}))
	assert.True(t, h.State().Categories["Food"])

	require.Nil(t, h.apply(playCommand{Type: "randomize", Count: 2}))
	assert.Len(t, h.State().Selected, 2)

	require.Nil(t, h.apply(playCommand{Type: "select_all"}))
	assert.Len(t, h.State().Selected, 4)
}

func TestPlayHub_PrunesRemovedDecks(t *testing.T) {
	h, c := newTestHub(t)
	require.Len(t, h.State().Selected, 4)

	_, err := c.DeleteDeck(context.Background(), "2")
	require.NoError(t, err)

	assert.NotContains(t, h.State().Selected, ID("2"))
	assert.Len(t, h.State().Selected, 3)
}

func TestPlayHub_RequiresSession(t *testing.T) {
	c, _ := loadedCatalog(t)
	h := newPlayHub(&Config{}, c, staffSessions(t, ""), testRNG())

	n := h.apply(playCommand{Type: "play"})
	require.NotNil(t, n)
	assert.True(t, n.Error)
	assert.Equal(t, "Please log in.", n.Message)
}

func TestServePlayWS(t *testing.T) {
	h, _ := newTestHub(t)

	done := make(chan struct{})
	defer close(done)
	go h.run(done)

	mux := httprouter.New()
	mux.GET("/play/ws", servePlayWS(&Config{}, h))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/play/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var st playStateMessage
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, "play_state", st.Type)
	assert.Len(t, st.Selected, 4)

	require.NoError(t, conn.WriteJSON(playCommand{Type: "reload"}))

	var n noticeMessage
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, "notice", n.Type)
	assert.Equal(t, "Nothing to reload yet.", n.Message)

	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, "play_state", st.Type)

	require.NoError(t, conn.WriteJSON(playCommand{Type: "play"}))
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, StatePlaying, st.State)
	assert.Equal(t, 5, st.PoolSize)
}

func TestServePlayWS_RejectsWithoutSession(t *testing.T) {
	c, _ := loadedCatalog(t)
	h := newPlayHub(&Config{}, c, staffSessions(t, ""), testRNG())

	rec := httptest.NewRecorder()
	servePlayWS(&Config{}, h)(rec, httptest.NewRequest("GET", "/play/ws", nil), nil)

	assert.Equal(t, 401, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detail":"Please log in."`)
}

func TestServePlayWS_ChecksBrowserGrant(t *testing.T) {
	h, _ := newTestHub(t)

	var revoked atomic.Bool
	h.allow = func(grant string) error {
		if grant != "good" || revoked.Load() {
			return authError("Please log in.")
		}
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	go h.run(done)

	mux := httprouter.New()
	mux.GET("/play/ws", servePlayWS(&Config{}, h))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/play/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Cookie": {grantCookie + "=good"}})
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var st playStateMessage
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, "play_state", st.Type)

	revoked.Store(true)
	require.NoError(t, conn.WriteJSON(playCommand{Type: "play"}))

	var n noticeMessage
	require.NoError(t, conn.ReadJSON(&n))
	assert.True(t, n.Error)
	assert.Equal(t, "Please log in.", n.Message)
	assert.Equal(t, StateIdle, h.State().State)
}

func TestServePlayWS_ReturnsAfterShutdown(t *testing.T) {
	h, _ := newTestHub(t)

	done := make(chan struct{})
	go h.run(done)
	close(done)
	<-h.stopped

	returned := make(chan struct{})
	ws := servePlayWS(&Config{}, h)

	mux := httprouter.New()
	mux.GET("/play/ws", func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		defer close(returned)
		ws(w, r, p)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/play/ws", nil)
	if err == nil {
		defer conn.Close()
	}

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("handler still blocked after the hub stopped")
	}
}
