/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Commands sent by play view clients.
type playCommand struct {
	Type     string `json:"type"`               // "select", "toggle_deck", "toggle_category", "select_all", "clear", "randomize", "play", "draw", "skip", "stop", "reload"
	IDs      []ID   `json:"ids,omitempty"`      // select
	ID       ID     `json:"id,omitempty"`       // toggle_deck
	Category string `json:"category,omitempty"` // toggle_category
	Count    int    `json:"count,omitempty"`    // randomize
}

// playStateMessage is broadcast to every client after each transition.
type playStateMessage struct {
	Type       string          `json:"type"` // "play_state"
	State      DealerState     `json:"state"`
	Remaining  int             `json:"remaining"`
	PoolSize   int             `json:"pool_size"`
	CanSkip    bool            `json:"can_skip"`
	Current    *Entry          `json:"current,omitempty"`
	Preview    string          `json:"preview"`
	CopyText   string          `json:"copy_text"`
	Selected   []ID            `json:"selected"`
	Categories map[string]bool `json:"categories"` // category -> fully selected
	Version    uint64          `json:"version"`
}

// noticeMessage goes only to the client whose command produced it.
type noticeMessage struct {
	Type    string `json:"type"` // "notice"
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type playClient struct {
	id    string
	grant string
	conn  *websocket.Conn
	send  chan any
}

type playRequest struct {
	client *playClient
	cmd    playCommand
}

// playHub owns the single dealer of this console. Every connected play
// view sees the same selection and run.
type playHub struct {
	cfg      *Config
	catalog  *Catalog
	sessions *SessionStore

	// allow checks a browser grant, when the hub is served by a console.
	allow func(grant string) error

	clients map[*playClient]bool

	register chan *playClient
	unreg    chan *playClient
	commands chan playRequest
	refresh  chan struct{}
	stopped  chan struct{}

	mu        sync.Mutex
	dealer    *Dealer
	selection Selection
	rng       *rand.Rand
	primed    bool
	seen      uint64
}

func newPlayHub(cfg *Config, catalog *Catalog, sessions *SessionStore, rng *rand.Rand) *playHub {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &playHub{
		cfg:      cfg,
		catalog:  catalog,
		sessions: sessions,
		clients:  make(map[*playClient]bool),
		register: make(chan *playClient),
		unreg:    make(chan *playClient),
		commands: make(chan playRequest),
		refresh:  make(chan struct{}, 1),
		stopped:  make(chan struct{}),
		dealer:   newDealer(rng),
		rng:      rng,
	}
}

func (h *playHub) run(done <-chan struct{}) {
	defer close(h.stopped)

	for {
		select {
		case <-done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.syncLocked()
			msg := h.stateLocked()
			total := len(h.clients)
			h.mu.Unlock()

			c.send <- msg

			logf(h.cfg, "PLAY: Client %s connected (%d total)", c.id, total)

		case c := <-h.unreg:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

			logf(h.cfg, "PLAY: Client %s disconnected", c.id)

		case req := <-h.commands:
			if err := h.authorize(req.client.grant); err != nil {
				h.tell(req.client, *notice(err, ""))
				continue
			}
			if n := h.apply(req.cmd); n != nil {
				h.tell(req.client, *n)
			}
			h.broadcast()

		case <-h.refresh:
			h.broadcast()
		}
	}
}

func (h *playHub) authorize(grant string) error {
	if h.allow != nil {
		return h.allow(grant)
	}
	_, err := h.sessions.Require(CapPlay)
	return err
}

// Notify schedules a broadcast, for catalog changes made outside the hub.
func (h *playHub) Notify() {
	select {
	case h.refresh <- struct{}{}:
	default:
	}
}

// syncLocked reconciles the selection with the installed catalog. The first
// snapshot seen with an empty selection selects every deck.
func (h *playHub) syncLocked() {
	version := h.catalog.Version()
	if version == h.seen {
		return
	}
	h.seen = version

	snap := h.catalog.Snapshot()
	h.selection.Prune(snap)

	if !h.primed && version > 0 {
		h.primed = true
		if h.selection.Len() == 0 {
			h.selection.SelectAll(snap)
		}
	}
}

func notice(err error, msg string) *noticeMessage {
	if err != nil {
		return &noticeMessage{Type: "notice", Error: true, Message: messageOf(err)}
	}
	if msg == "" {
		return nil
	}
	return &noticeMessage{Type: "notice", Message: msg}
}

// apply runs one command against the shared dealer and selection.
func (h *playHub) apply(cmd playCommand) *noticeMessage {
	if _, err := h.sessions.Require(CapPlay); err != nil {
		return notice(err, "")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.syncLocked()
	snap := h.catalog.Snapshot()

	switch cmd.Type {
	case "select":
		h.selection.Clear()
		for _, id := range cmd.IDs {
			if _, ok := snap.deck(id); ok && !h.selection.Has(id) {
				h.selection.Toggle(id)
			}
		}

	case "toggle_deck":
		if _, ok := snap.deck(cmd.ID); !ok {
			return notice(validationError("Deck not found."), "")
		}
		h.selection.Toggle(cmd.ID)

	case "toggle_category":
		h.selection.ToggleCategory(snap, cmd.Category)

	case "select_all":
		h.selection.SelectAll(snap)

	case "clear":
		h.selection.Clear()

	case "randomize":
		if err := h.selection.Randomize(h.rng, snap, cmd.Count); err != nil {
			return notice(err, "")
		}

	case "play":
		if err := h.dealer.BeginPlay(snap.Decks, h.selection.IDs()); err != nil {
			return notice(err, "")
		}
		logf(h.cfg, "PLAY: Started run of %d cards from %d decks", h.dealer.PoolSize(), h.selection.Len())

	case "draw":
		h.dealer.Draw()

	case "skip":
		h.dealer.Skip()

	case "reload":
		if !h.dealer.Reload() {
			return notice(nil, "Nothing to reload yet.")
		}
		logf(h.cfg, "PLAY: Reshuffled %d cards", h.dealer.PoolSize())

	case "stop":
		h.dealer.Stop()

	default:
		return notice(validationError("Unknown command: "+cmd.Type), "")
	}

	return nil
}

func (h *playHub) stateLocked() playStateMessage {
	snap := h.catalog.Snapshot()

	cats := make(map[string]bool, len(snap.Categories))
	for _, c := range snap.Categories {
		cats[c] = h.selection.CategoryState(snap, c)
	}

	msg := playStateMessage{
		Type:       "play_state",
		State:      h.dealer.State(),
		Remaining:  h.dealer.Remaining(),
		PoolSize:   h.dealer.PoolSize(),
		CanSkip:    h.dealer.CanSkip(),
		Preview:    previewWord(nil, h.dealer.Playing()),
		CopyText:   dealerCopyText(h.dealer),
		Selected:   h.selection.IDs(),
		Categories: cats,
		Version:    h.catalog.Version(),
	}

	if e, ok := h.dealer.Current(); ok {
		msg.Current = &e
		msg.Preview = previewWord(&e, true)
	}

	return msg
}

// State is the message a newly connected client would receive.
func (h *playHub) State() playStateMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.syncLocked()
	return h.stateLocked()
}

func (h *playHub) tell(c *playClient, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

func (h *playHub) broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.syncLocked()
	msg := h.stateLocked()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *playHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

func servePlayWS(cfg *Config, h *playHub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		grant := grantOf(r)
		if err := h.authorize(grant); err != nil {
			writeError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Play upgrade from %s: %v", realIP(r), err)
			return
		}

		id, _ := gonanoid.New(10)

		c := &playClient{
			id:    id,
			grant: grant,
			conn:  conn,
			send:  make(chan any, 16),
		}

		select {
		case h.register <- c:
		case <-h.stopped:
			_ = conn.Close()
			return
		}

		go c.writePump()
		c.readPump(h)
	}
}

func (c *playClient) readPump(h *playHub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.stopped:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd playCommand
		if err := c.conn.ReadJSON(&cmd); err != nil {
			return
		}

		select {
		case h.commands <- playRequest{client: c, cmd: cmd}:
		case <-h.stopped:
			return
		}
	}
}

func (c *playClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
