/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
)

const (
	faviconPalette = "p180"
	faviconSize    = 64
)

func getFavicon(cfg *Config) string {
	return `<link rel="icon" type="image/png" sizes="64x64" href="` + cfg.prefix + `/favicon.png">
	<meta name="theme-color" content="#0b0d1a">`
}

// serveFavicon answers with the base sprite in a fixed palette.
func serveFavicon(cfg *Config, sprites *spriteSet, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data, err := sprites.PNG(faviconPalette, faviconSize)
		if err != nil {
			errs <- err

			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("Expires", time.Now().Add(24*time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err = w.Write(data)
		if err != nil {
			errs <- err

			return
		}
	}
}
