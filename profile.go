/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

var pprofEndpoints = map[string]http.HandlerFunc{
	"cmdline": pprof.Cmdline,
	"profile": pprof.Profile,
	"symbol":  pprof.Symbol,
	"trace":   pprof.Trace,
}

var pprofProfiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

func registerProfileHandlers(cfg *Config, mux *httprouter.Router) {
	base := cfg.prefix + "/pprof/"

	mux.HandlerFunc("GET", base, pprof.Index)

	for _, name := range pprofProfiles {
		mux.Handler("GET", base+name, pprof.Handler(name))
	}
	for name, h := range pprofEndpoints {
		mux.HandlerFunc("GET", base+name, h)
	}

	logf(cfg, "SERVE: Registered pprof handlers under %s", base)
}
