package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; connect-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func humanReadableSize(n int64) string {
	const unit = 1000

	size := float64(n)
	for _, suffix := range []string{"B", "kB", "MB", "GB", "TB"} {
		if size < unit || suffix == "TB" {
			if suffix == "B" {
				return fmt.Sprintf("%d B", n)
			}
			return fmt.Sprintf("%.1f %s", size, suffix)
		}
		size /= unit
	}
	return ""
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("taboostaff v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveQR encodes the console's own address, so staff can open it from a
// phone.
func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		target := scheme + "://" + r.Host + cfg.prefix + "/"

		const qrSize = 320
		png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func serveSprite(cfg *Config, sprites *spriteSet, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		key := strings.TrimSuffix(p.ByName("palette"), ".png")
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))

		data, err := sprites.PNG(key, size)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// newConsole assembles the console from an app bound to the listen address.
func newConsole(cfg *Config, a *app) (*console, error) {
	base, err := loadSprite(cfg.sprite)
	if err != nil {
		return nil, err
	}

	c := &console{
		cfg:       cfg,
		api:       a.api,
		sessions:  a.sessions,
		catalog:   a.catalog,
		organizer: a.organizer,
		passwords: a.passwords,
		play:      newPlayHub(cfg, a.catalog, a.sessions, nil),
		sprites:   newSpriteSet(base),
		logins:    newLoginLimiter(cfg.loginRate),
		grants:    newBrowserGrants(),
	}

	c.play.allow = func(grant string) error {
		_, err := c.authorizeGrant(grant, CapPlay)
		return err
	}

	return c, nil
}

func newRouter(cfg *Config, c *console, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		logf(cfg, "ERROR: Panic serving %s: %v", r.URL.Path, i)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage(cfg, "Server Error", "An error has occurred. Please try again."))
	}

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, c.authorize, errs))
	mux.GET(cfg.prefix+"/login", serveLoginPage(cfg, errs))
	mux.GET(cfg.prefix+"/assets/*file", serveAssets(cfg, errs))
	mux.GET(cfg.prefix+"/favicon.png", serveFavicon(cfg, c.sprites, errs))
	mux.GET(cfg.prefix+"/sprites/:palette", serveSprite(cfg, c.sprites, errs))
	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))
	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))
	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))
	mux.GET(cfg.prefix+"/qr", serveQR(cfg, errs))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	c.routes(mux)

	return mux
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: taboostaff v%s", releaseVersion)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	a, err := newApp(cfg, cfg.bind)
	if err != nil {
		return err
	}

	c, err := newConsole(cfg, a)
	if err != nil {
		return err
	}

	errs := make(chan error, 64)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, c, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      cfg.timeout + timeout,
	}

	go c.play.run(ctx.Done())

	if err := os.MkdirAll(filepath.Dir(a.storage.path), 0o700); err == nil {
		if err := watchSession(ctx, cfg, a.storage.path, a.sessions, c.play.Notify); err != nil {
			logf(cfg, "ERROR: Session file will not be watched: %v", err)
		}
	}

	go c.warm(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				logf(cfg, "ERROR: %v", err)
			}
		}
	}()

	go func() {
		var err error
		logf(cfg, "SERVE: Listening on %s://%s%s/ (backend %s)", cfg.scheme(), srv.Addr, cfg.prefix, a.api.base)
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("%s | ERROR: %v\n", time.Now().Format(logDate), err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
