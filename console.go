/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/time/rate"
)

const (
	maxRequestSize = 1 << 20

	grantCookie = "taboostaff_console"
)

// console serves the staff web console. It shares one Session, catalog and
// dealer between every browser tab pointed at it.
type console struct {
	cfg       *Config
	api       *Client
	sessions  *SessionStore
	catalog   *Catalog
	organizer *Organizer
	passwords *Passwords
	play      *playHub
	sprites   *spriteSet
	logins    *loginLimiter
	grants    *browserGrants
}

// browserGrants records which browsers logged in through the console. Each
// grant is bound to the Session token it was issued under, so a Session
// replaced by another login or process is not inherited.
type browserGrants struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newBrowserGrants() *browserGrants {
	return &browserGrants{tokens: make(map[string]string)}
}

func (g *browserGrants) issue(token string) (string, error) {
	id, err := gonanoid.New(32)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	g.tokens[id] = token
	g.mu.Unlock()

	return id, nil
}

func (g *browserGrants) lookup(id string) (string, bool) {
	if id == "" {
		return "", false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	token, ok := g.tokens[id]
	return token, ok
}

// rebind moves every grant held under one token to another.
func (g *browserGrants) rebind(from, to string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, token := range g.tokens {
		if token == from {
			g.tokens[id] = to
		}
	}
}

func (g *browserGrants) reset() {
	g.mu.Lock()
	clear(g.tokens)
	g.mu.Unlock()
}

func grantOf(r *http.Request) string {
	cookie, err := r.Cookie(grantCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// loginLimiter throttles password attempts per client address.
type loginLimiter struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*rate.Limiter
}

func newLoginLimiter(perMin int) *loginLimiter {
	perMin = max(perMin, 1)

	return &loginLimiter{perMin: perMin, limiters: make(map[string]*rate.Limiter)}
}

// Allow takes the socket address. Forwarded headers are never used here
// since any client can set them.
func (l *loginLimiter) Allow(addr string) bool {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[addr]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.limiters[addr] = lim
	}
	return lim.Allow()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the error's single message as {"detail": ...}.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"detail": messageOf(err)})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestSize))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return validationError("Malformed request body.")
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

// sameOrigin reports whether a browser-supplied Origin, if any, names the
// host the request was sent to.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// jsonRequest reports whether a state-changing request declares a JSON body.
// Other content types can be sent cross-site without a preflight.
func jsonRequest(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// logged records method, path, status and timing of each API call, and
// refuses cross-origin and non-JSON requests before the handler runs.
func (c *console) logged(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		securityHeaders(c.cfg, rec)

		switch {
		case !sameOrigin(r):
			writeError(rec, permissionError("Cross-origin requests are refused."))
		case !jsonRequest(r):
			writeJSON(rec, http.StatusUnsupportedMediaType, map[string]string{"detail": "Requests must be sent as application/json."})
		default:
			h(rec, r, p)
		}

		logf(c.cfg, "SERVE: %s %s -> %d (%s) to %s in %s",
			r.Method,
			r.URL.Path,
			rec.status,
			humanReadableSize(rec.written),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// authorizeGrant checks that a browser grant is still bound to the current
// Session and that the Session holds the capability.
func (c *console) authorizeGrant(grant string, capability Capability) (Session, error) {
	token, ok := c.grants.lookup(grant)
	if !ok {
		return Session{}, authError("Please log in.")
	}

	sess, err := c.sessions.Require(capability)
	if err != nil {
		return Session{}, err
	}
	if sess.Token != token {
		return Session{}, authError("Please log in.")
	}

	return sess, nil
}

func (c *console) authorize(r *http.Request, capability Capability) (Session, error) {
	return c.authorizeGrant(grantOf(r), capability)
}

func (c *console) cookiePath() string {
	return c.cfg.prefix + "/"
}

func (c *console) setGrantCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     grantCookie,
		Value:    value,
		Path:     c.cookiePath(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cfg.scheme() == "https",
		SameSite: http.SameSiteStrictMode,
	})
}

// gated rejects the request before the handler runs unless this browser
// logged in and the Session holds the capability.
func (c *console) gated(capability Capability, h httprouter.Handle) httprouter.Handle {
	return c.logged(func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if _, err := c.authorize(r, capability); err != nil {
			writeError(w, err)
			return
		}
		h(w, r, p)
	})
}

type sessionView struct {
	LoggedIn  bool       `json:"logged_in"`
	Role      Role       `json:"role,omitempty"`
	AdminLike bool       `json:"admin_like"`
	Expires   *time.Time `json:"expires,omitempty"`
}

func (c *console) sessionView(r *http.Request) sessionView {
	token, ok := c.grants.lookup(grantOf(r))
	if !ok {
		return sessionView{}
	}

	sess, ok := c.sessions.Current()
	if !ok || sess.Token != token {
		return sessionView{}
	}

	return viewOf(sess)
}

func viewOf(sess Session) sessionView {
	v := sessionView{LoggedIn: true, Role: sess.Role, AdminLike: sess.Role.AdminLike()}
	if !sess.Expires.IsZero() {
		v.Expires = &sess.Expires
	}
	return v
}

type deckView struct {
	ID                ID     `json:"id"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	CardCount         int    `json:"card_count"`
	SourceType        string `json:"source_type,omitempty"`
	Source            string `json:"source,omitempty"`
	TabooWordsPerCard int    `json:"taboo_words_per_card,omitempty"`
	Flagged           bool   `json:"flagged"`
}

type categoryView struct {
	Name      string     `json:"name"`
	Collapsed bool       `json:"collapsed"`
	Sort      SortMode   `json:"sort"`
	Deletable bool       `json:"deletable"`
	Decks     []deckView `json:"decks"`
}

type workbookView struct {
	Workbook
	SheetURL  string `json:"sheet_url,omitempty"`
	DeckTotal int    `json:"deck_total"`
	Flagged   bool   `json:"flagged"`
}

type catalogView struct {
	Version    uint64         `json:"version"`
	Categories []categoryView `json:"categories"`
	Workbooks  []workbookView `json:"workbooks"`
	Dragging   ID             `json:"dragging,omitempty"`
	Deleting   string         `json:"deleting,omitempty"`
}

func (c *console) catalogView() catalogView {
	snap := c.catalog.Snapshot()
	c.organizer.Sync(snap)

	view := catalogView{
		Version:    c.catalog.Version(),
		Categories: make([]categoryView, 0, len(snap.Categories)),
		Workbooks:  []workbookView{},
		Dragging:   c.organizer.Dragging(),
		Deleting:   c.organizer.DeleteSelection(),
	}

	for _, name := range snap.Categories {
		decks := c.organizer.DecksByCategory(snap, name)

		cv := categoryView{
			Name:      name,
			Collapsed: c.organizer.Collapsed(name),
			Sort:      c.organizer.SortMode(name),
			Deletable: name != uncategorized,
			Decks:     make([]deckView, 0, len(decks)),
		}
		for _, d := range decks {
			cv.Decks = append(cv.Decks, deckView{
				ID:                d.ID,
				Name:              d.Name,
				Category:          d.Category,
				CardCount:         d.CardCount,
				SourceType:        d.SourceType,
				Source:            d.Source,
				TabooWordsPerCard: d.TabooWordsPerCard,
				Flagged:           c.organizer.Flagged(d.ID),
			})
		}

		view.Categories = append(view.Categories, cv)
	}

	for _, wb := range c.catalog.Workbooks() {
		view.Workbooks = append(view.Workbooks, workbookView{
			Workbook:  wb,
			SheetURL:  wb.SheetURL(),
			DeckTotal: wb.DeckTotal(),
			Flagged:   c.organizer.WorkbookFlagged(wb),
		})
	}

	return view
}

// answer reports the catalog view after a mutation and tells play views
// the snapshot moved.
func (c *console) answer(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}

	c.play.Notify()
	writeJSON(w, http.StatusOK, c.catalogView())
}

func (c *console) answerMessage(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		writeError(w, err)
		return
	}

	c.play.Notify()
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (c *console) serveSession() httprouter.Handle {
	return c.logged(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, c.sessionView(r))
	})
}

// serveLogin replaces the shared Session and grants it to this browser.
// Browsers that held the previous Session keep access only when the role is
// unchanged.
func (c *console) serveLogin() httprouter.Handle {
	return c.logged(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if !c.logins.Allow(r.RemoteAddr) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"detail": "Too many login attempts. Try again in a minute."})
			return
		}

		var body struct {
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}

		prev, hadPrev := c.sessions.Current()

		sess, err := c.sessions.Login(r.Context(), c.api, body.Password)
		if err != nil {
			logf(c.cfg, "LOGIN: Failed attempt from %s: %s", realIP(r), messageOf(err))
			writeError(w, err)
			return
		}

		if hadPrev && prev.Role == sess.Role {
			c.grants.rebind(prev.Token, sess.Token)
		} else {
			c.grants.reset()
		}

		grant, err := c.grants.issue(sess.Token)
		if err != nil {
			writeError(w, err)
			return
		}
		c.setGrantCookie(w, grant, 0)

		logf(c.cfg, "LOGIN: %s session started from %s", sess.Role, realIP(r))

		if _, _, err := c.catalog.Load(r.Context()); err != nil {
			logf(c.cfg, "CATALOG: Initial load failed: %v", err)
		}
		c.play.Notify()

		writeJSON(w, http.StatusOK, viewOf(sess))
	})
}

// serveLogout ends the shared Session for every browser. Only a browser
// that logged in here may do it.
func (c *console) serveLogout() httprouter.Handle {
	return c.logged(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if _, ok := c.grants.lookup(grantOf(r)); !ok {
			writeError(w, authError("Please log in."))
			return
		}

		if err := c.sessions.Logout(); err != nil {
			writeError(w, err)
			return
		}

		c.grants.reset()
		c.setGrantCookie(w, "", -1)

		logf(c.cfg, "LOGIN: Session ended from %s", realIP(r))
		c.play.Notify()

		writeJSON(w, http.StatusOK, sessionView{})
	})
}

func (c *console) serveCatalog() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if c.catalog.Version() == 0 || r.URL.Query().Get("reload") != "" {
			if _, _, err := c.catalog.Load(r.Context()); err != nil {
				writeError(w, err)
				return
			}
			c.play.Notify()
		}

		writeJSON(w, http.StatusOK, c.catalogView())
	}
}

func (c *console) serveRefreshSource() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		_, err := c.catalog.RefreshFromSource(r.Context())
		c.answer(w, err)
	}
}

func (c *console) serveCreateCategory() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}

		_, err := c.catalog.CreateCategory(r.Context(), body.Name)
		c.answer(w, err)
	}
}

func (c *console) serveDeleteCategory() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if err := c.organizer.SelectForDelete(c.catalog.Snapshot(), p.ByName("name")); err != nil {
			writeError(w, err)
			return
		}

		_, err := c.organizer.ConfirmDelete(r.Context(), c.catalog)
		c.answer(w, err)
	}
}

func (c *console) serveMoveDeck() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var body struct {
			Category string `json:"category"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}

		_, err := c.organizer.Drop(r.Context(), c.catalog, ID(p.ByName("id")), body.Category)
		c.answer(w, err)
	}
}

func (c *console) serveDeleteDeck() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		_, err := c.catalog.DeleteDeck(r.Context(), ID(p.ByName("id")))
		c.answer(w, err)
	}
}

func (c *console) serveImportDeck() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			URL               string `json:"url"`
			Name              string `json:"name"`
			Category          string `json:"category"`
			TabooWordsPerCard *int   `json:"taboo_words_per_card"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}

		_, err := c.catalog.ImportDeck(r.Context(), ImportOptions{
			URL:               body.URL,
			Name:              body.Name,
			Category:          body.Category,
			TabooWordsPerCard: body.TabooWordsPerCard,
		})
		c.answer(w, err)
	}
}

func (c *console) serveImportWorkbook() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			SheetURL string `json:"sheet_url"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}

		res, err := c.catalog.ImportWorkbook(r.Context(), body.SheetURL)
		if err != nil {
			writeError(w, err)
			return
		}

		c.play.Notify()
		writeJSON(w, http.StatusOK, res)
	}
}

func (c *console) serveReloadWorkbook() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		msg, err := c.catalog.ReloadWorkbook(r.Context(), ID(p.ByName("id")))
		c.answerMessage(w, msg, err)
	}
}

func (c *console) serveDeleteWorkbook() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		msg, err := c.catalog.DeleteWorkbook(r.Context(), ID(p.ByName("id")))
		c.answerMessage(w, msg, err)
	}
}

func (c *console) serveFlagWorkbook() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := ID(p.ByName("id"))

		for _, wb := range c.catalog.Workbooks() {
			if wb.ID == id {
				c.organizer.ToggleFlag(wb)
				writeJSON(w, http.StatusOK, c.catalogView())
				return
			}
		}

		writeError(w, validationError("Workbook not found."))
	}
}

func (c *console) serveSort() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Category string   `json:"category"`
			Mode     SortMode `json:"mode"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}

		if err := c.organizer.SetSortMode(body.Category, body.Mode); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, c.catalogView())
	}
}

// serveCollapse toggles one category, or every category when none is named.
func (c *console) serveCollapse() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Category string `json:"category"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}

		if body.Category == "" {
			c.organizer.ToggleAll(c.catalog.Snapshot())
		} else {
			c.organizer.ToggleCollapsed(body.Category)
		}

		writeJSON(w, http.StatusOK, c.catalogView())
	}
}

func (c *console) serveDrag() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			ID ID `json:"id"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}

		if body.ID == "" {
			c.organizer.EndDrag()
		} else if err := c.organizer.BeginDrag(c.catalog.Snapshot(), body.ID); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, c.catalogView())
	}
}

func (c *console) serveStaffPassword() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		pw, err := c.passwords.Staff(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"password": pw})
	}
}

func (c *console) serveChangeStaffPassword() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			NewPassword string `json:"new_password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}

		msg, err := c.passwords.SetStaff(r.Context(), body.NewPassword)
		c.answerMessage(w, msg, err)
	}
}

func (c *console) serveRequestReset() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		msg, err := c.passwords.RequestReset(r.Context())
		c.answerMessage(w, msg, err)
	}
}

func (c *console) serveCompleteReset() httprouter.Handle {
	return c.logged(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Token       string `json:"token"`
			NewPassword string `json:"new_password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}

		msg, err := c.passwords.CompleteReset(r.Context(), body.Token, body.NewPassword)
		c.answerMessage(w, msg, err)
	})
}

func (c *console) servePalettes() httprouter.Handle {
	return c.logged(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string][]string{"palettes": c.sprites.Keys()})
	})
}

// routes registers the JSON API and both websockets under the prefix.
func (c *console) routes(mux *httprouter.Router) {
	api := c.cfg.prefix + "/api"

	mux.GET(api+"/session", c.serveSession())
	mux.POST(api+"/login", c.serveLogin())
	mux.POST(api+"/logout", c.serveLogout())
	mux.GET(api+"/palettes", c.servePalettes())

	mux.GET(api+"/catalog", c.gated(CapPlay, c.serveCatalog()))

	mux.POST(api+"/catalog/refresh-source", c.gated(CapManage, c.serveRefreshSource()))
	mux.POST(api+"/categories", c.gated(CapManage, c.serveCreateCategory()))
	mux.DELETE(api+"/categories/:name", c.gated(CapManage, c.serveDeleteCategory()))
	mux.PATCH(api+"/decks/:id/category", c.gated(CapManage, c.serveMoveDeck()))
	mux.DELETE(api+"/decks/:id", c.gated(CapManage, c.serveDeleteDeck()))
	mux.POST(api+"/decks/import", c.gated(CapManage, c.serveImportDeck()))
	mux.POST(api+"/workbooks", c.gated(CapManage, c.serveImportWorkbook()))
	mux.POST(api+"/workbooks/:id/reload", c.gated(CapManage, c.serveReloadWorkbook()))
	mux.DELETE(api+"/workbooks/:id", c.gated(CapManage, c.serveDeleteWorkbook()))
	mux.POST(api+"/workbooks/:id/flag", c.gated(CapManage, c.serveFlagWorkbook()))
	mux.POST(api+"/organizer/sort", c.gated(CapManage, c.serveSort()))
	mux.POST(api+"/organizer/collapse", c.gated(CapManage, c.serveCollapse()))
	mux.POST(api+"/organizer/drag", c.gated(CapManage, c.serveDrag()))

	mux.GET(api+"/staff-password", c.gated(CapManage, c.serveStaffPassword()))
	mux.POST(api+"/staff-password", c.gated(CapManage, c.serveChangeStaffPassword()))
	mux.POST(api+"/admin-reset/request", c.gated(CapManage, c.serveRequestReset()))
	mux.POST(api+"/admin-reset/complete", c.serveCompleteReset())

	mux.GET(c.cfg.prefix+"/play/ws", servePlayWS(c.cfg, c.play))
	mux.GET(c.cfg.prefix+"/sky/ws", serveSkyWS(c.cfg, c.sprites))
}

// warm loads the catalog for a Session restored from storage.
func (c *console) warm(ctx context.Context) {
	if _, err := c.sessions.Require(CapPlay); err != nil {
		return
	}

	if _, _, err := c.catalog.Load(ctx); err != nil {
		logf(c.cfg, "CATALOG: Initial load failed: %v", strings.TrimSpace(messageOf(err)))
		return
	}
	c.play.Notify()
}
