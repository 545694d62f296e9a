/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// app is everything one client instance shares: the session file, the
// backend client and the catalog mirror.
type app struct {
	cfg       *Config
	storage   *fileStorage
	sessions  *SessionStore
	api       *Client
	catalog   *Catalog
	organizer *Organizer
	passwords *Passwords
}

// newApp opens the session file and resolves the backend for a client
// running on host.
func newApp(cfg *Config, host string) (*app, error) {
	base, err := resolveBackendURL(cfg.backendURL, host)
	if err != nil {
		return nil, err
	}

	path := cfg.sessionFile
	if path == "" {
		path = defaultSessionFile()
	}

	storage, err := openFileStorage(path)
	if err != nil {
		return nil, err
	}

	sessions := newSessionStore(storage)
	api := newClient(base, sessions, cfg.timeout)

	return &app{
		cfg:       cfg,
		storage:   storage,
		sessions:  sessions,
		api:       api,
		catalog:   newCatalog(cfg, api),
		organizer: newOrganizer(),
		passwords: newPasswords(cfg, api),
	}, nil
}
