/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

type library interface {
	DeckState(ctx context.Context) (*Snapshot, error)
	RefreshFromSource(ctx context.Context) (*Snapshot, error)
	ImportDeck(ctx context.Context, req ImportRequest) (*Snapshot, error)
	CreateCategory(ctx context.Context, name string) (*Snapshot, error)
	DeleteCategory(ctx context.Context, name string) (*Snapshot, error)
	MoveDeck(ctx context.Context, id ID, category string) (*Snapshot, error)
	DeleteDeck(ctx context.Context, id ID) (*Snapshot, error)
	ImportWorkbook(ctx context.Context, sheetURL string) (*WorkbookImport, error)
	Workbooks(ctx context.Context) ([]Workbook, error)
	ReloadWorkbook(ctx context.Context, id ID) (string, error)
	DeleteWorkbook(ctx context.Context, id ID) (string, error)
}

// Catalog mirrors the backend's categories, decks and workbooks. Every
// mutation installs the full snapshot the backend answers with; nothing is
// patched locally.
type Catalog struct {
	cfg *Config
	api library

	mu        sync.RWMutex
	snap      Snapshot
	workbooks []Workbook
	version   uint64
}

func newCatalog(cfg *Config, api library) *Catalog {
	return &Catalog{
		cfg:       cfg,
		api:       api,
		snap:      Snapshot{}.normalized(),
		workbooks: []Workbook{},
	}
}

// Snapshot returns the installed state. Installed snapshots are never
// mutated, so the result is safe to read after later installs.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.snap
}

func (c *Catalog) Workbooks() []Workbook {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.workbooks
}

// Version increments on each install, so callers can tell their
// references have gone stale.
func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.version
}

func (c *Catalog) install(snap *Snapshot) Snapshot {
	next := snap.normalized()

	c.mu.Lock()
	c.snap = next
	c.version++
	c.mu.Unlock()

	logf(c.cfg, "CATALOG: Installed %d categories, %d decks", len(next.Categories), len(next.Decks))

	return next
}

func (c *Catalog) installWorkbooks(list []Workbook) {
	c.mu.Lock()
	c.workbooks = list
	c.mu.Unlock()
}

func (c *Catalog) mutate(snap *Snapshot, err error) (Snapshot, error) {
	if err != nil {
		return c.Snapshot(), err
	}
	return c.install(snap), nil
}

func (c *Catalog) Refresh(ctx context.Context) (Snapshot, error) {
	return c.mutate(c.api.DeckState(ctx))
}

// Load fetches the snapshot and the workbook list together. The workbook
// list fails soft and never blocks the snapshot.
func (c *Catalog) Load(ctx context.Context) (Snapshot, []Workbook, error) {
	var (
		snap      Snapshot
		workbooks []Workbook
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = c.Refresh(gctx)
		return err
	})
	g.Go(func() error {
		workbooks, _ = c.ListWorkbooks(gctx, true)
		return nil
	})

	if err := g.Wait(); err != nil {
		return c.Snapshot(), c.Workbooks(), err
	}

	return snap, workbooks, nil
}

func (c *Catalog) RefreshFromSource(ctx context.Context) (Snapshot, error) {
	return c.mutate(c.api.RefreshFromSource(ctx))
}

func (c *Catalog) CreateCategory(ctx context.Context, name string) (Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return c.Snapshot(), validationError("Category name cannot be empty.")
	}
	return c.mutate(c.api.CreateCategory(ctx, name))
}

// DeleteCategory moves the category's decks to "Uncategorized" on the
// backend. The permanent bucket is refused before any request is made.
func (c *Catalog) DeleteCategory(ctx context.Context, name string) (Snapshot, error) {
	if name == "" {
		return c.Snapshot(), validationError("Select a category to delete.")
	}
	if name == uncategorized {
		return c.Snapshot(), validationError("Cannot delete the 'Uncategorized' category.")
	}
	return c.mutate(c.api.DeleteCategory(ctx, name))
}

// MoveDeck sends the reassignment even when the category is unknown
// locally; the backend decides and its error is surfaced as is.
func (c *Catalog) MoveDeck(ctx context.Context, id ID, category string) (Snapshot, error) {
	if id == "" {
		return c.Snapshot(), validationError("No deck selected.")
	}
	return c.mutate(c.api.MoveDeck(ctx, id, category))
}

func (c *Catalog) DeleteDeck(ctx context.Context, id ID) (Snapshot, error) {
	if id == "" {
		return c.Snapshot(), validationError("No deck selected.")
	}
	return c.mutate(c.api.DeleteDeck(ctx, id))
}

type ImportOptions struct {
	URL               string
	Name              string
	Category          string
	TabooWordsPerCard *int
}

const defaultTabooWords = 4

// ImportDeck imports one deck; an unset TabooWordsPerCard means the default
// of 4. An explicit value must be at least 1.
func (c *Catalog) ImportDeck(ctx context.Context, opts ImportOptions) (Snapshot, error) {
	req := ImportRequest{
		URL:               strings.TrimSpace(opts.URL),
		Name:              strings.TrimSpace(opts.Name),
		Category:          strings.TrimSpace(opts.Category),
		TabooWordsPerCard: defaultTabooWords,
	}
	if opts.TabooWordsPerCard != nil {
		req.TabooWordsPerCard = *opts.TabooWordsPerCard
	}

	if err := validate.Struct(req); err != nil {
		return c.Snapshot(), validationError(describeValidation(err))
	}

	return c.mutate(c.api.ImportDeck(ctx, req))
}

func (c *Catalog) ImportWorkbook(ctx context.Context, sheetURL string) (*WorkbookImport, error) {
	sheetURL = strings.TrimSpace(sheetURL)
	if sheetURL == "" {
		return nil, validationError("Paste the Google Sheets URL for the workbook.")
	}

	res, err := c.api.ImportWorkbook(ctx, sheetURL)
	if err != nil {
		return nil, err
	}

	if _, _, err := c.Load(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// ListWorkbooks fetches workbooks independently of the snapshot. With soft
// set, a failure degrades to an empty list.
func (c *Catalog) ListWorkbooks(ctx context.Context, soft bool) ([]Workbook, error) {
	list, err := c.api.Workbooks(ctx)
	if err != nil {
		if soft {
			logf(c.cfg, "CATALOG: Workbook list unavailable: %v", err)
			c.installWorkbooks([]Workbook{})
			return []Workbook{}, nil
		}
		return nil, err
	}

	c.installWorkbooks(list)
	return list, nil
}

func (c *Catalog) ReloadWorkbook(ctx context.Context, id ID) (string, error) {
	if id == "" {
		return "", validationError("No workbook selected.")
	}

	msg, err := c.api.ReloadWorkbook(ctx, id)
	if err != nil {
		return "", err
	}

	if _, _, err := c.Load(ctx); err != nil {
		return msg, err
	}
	return msg, nil
}

func (c *Catalog) DeleteWorkbook(ctx context.Context, id ID) (string, error) {
	if id == "" {
		return "", validationError("No workbook selected.")
	}

	msg, err := c.api.DeleteWorkbook(ctx, id)
	if err != nil {
		return "", err
	}

	if _, _, err := c.Load(ctx); err != nil {
		return msg, err
	}
	return msg, nil
}
