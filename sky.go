/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	skyFrameRate = 33 * time.Millisecond

	defaultSkyWidth  = 1280
	defaultSkyHeight = 720
)

// skyCommand carries pointer and viewport events from the browser.
type skyCommand struct {
	Type string  `json:"type"` // "resize", "grab", "move", "release"
	ID   string  `json:"id,omitempty"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
	T    float64 `json:"t,omitempty"` // pointer timestamp, ms
	W    float64 `json:"w,omitempty"`
	H    float64 `json:"h,omitempty"`
}

type skyFrame struct {
	Type    string   `json:"type"` // "frame"
	Sprites []Sprite `json:"sprites"`
}

func (f *Field) handle(cmd skyCommand) {
	switch cmd.Type {
	case "resize":
		f.Resize(cmd.W, cmd.H)
	case "grab":
		f.Grab(cmd.ID, cmd.X, cmd.Y, cmd.T)
	case "move":
		f.Move(cmd.X, cmd.Y, cmd.T)
	case "release":
		f.Release()
	}
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// serveSkyWS streams one private sprite field per connection. It needs no
// session, so the login page can show it too.
func serveSkyWS(cfg *Config, sprites *spriteSet) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		width := queryFloat(r, "w", defaultSkyWidth)
		height := queryFloat(r, "h", defaultSkyHeight)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Sky upgrade from %s: %v", realIP(r), err)
			return
		}
		defer conn.Close()

		field := newField(nil, sprites.Keys(), width, height)

		logf(cfg, "SKY: Streaming %.0fx%.0f field to %s", width, height, realIP(r))

		done := make(chan struct{})
		go func() {
			defer close(done)

			conn.SetReadLimit(maxMessage)
			for {
				var cmd skyCommand
				if err := conn.ReadJSON(&cmd); err != nil {
					return
				}
				field.handle(cmd)
			}
		}()

		ticker := time.NewTicker(skyFrameRate)
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-done:
				return

			case now := <-ticker.C:
				field.Step(now.Sub(last))
				last = now

				_ = conn.SetWriteDeadline(now.Add(writeWait))
				if err := conn.WriteJSON(skyFrame{Type: "frame", Sprites: field.Frame()}); err != nil {
					if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						logf(cfg, "SKY: Stream to %s ended: %v", realIP(r), err)
					}
					return
				}
			}
		}
	}
}
