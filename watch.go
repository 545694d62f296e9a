/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchSession reloads the Session whenever another process rewrites the
// session file. The directory is watched since writes land by rename.
func watchSession(ctx context.Context, cfg *Config, path string, sessions *SessionStore, changed func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return err
	}

	name := filepath.Clean(path)

	go func() {
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != name {
					continue
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}

				if err := sessions.Reload(); err != nil {
					logf(cfg, "ERROR: Reloading session file: %v", err)
					continue
				}

				logf(cfg, "LOGIN: Session file changed, reloaded")

				if changed != nil {
					changed()
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logf(cfg, "ERROR: Watching session file: %v", err)
			}
		}
	}()

	return nil
}
