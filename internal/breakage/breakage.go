// Package breakage finds items whose declared parent disagrees with the
// parent implied by their location.
package breakage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/lherron/nestmig/internal/bulk"
	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/paths"
	"github.com/lherron/nestmig/internal/progress"
)

// Reader reads item metadata
type Reader interface {
	// ReadItem returns nil, nil when the item does not exist.
	ReadItem(ctx context.Context, p paths.Path) (*domain.Item, error)
}

// Breakage is one item whose hierarchy is broken
type Breakage struct {
	Path     paths.Path  `json:"path"`
	Declared *paths.Path `json:"declared,omitempty"`
	Location paths.Path  `json:"location"`
}

// Report is the outcome of a detection run
type Report struct {
	Checked int              `json:"checked"`
	Broken  []Breakage       `json:"broken"`
	Failed  []bulk.ItemError `json:"-"`

	// Reads is the outcome of the parallel item reads.
	Reads *bulk.Result `json:"-"`
}

// Detector checks items concurrently
type Detector struct {
	reader    Reader
	homeSpace string
	jobs      int
	progress  progress.Reporter
	logger    *slog.Logger
}

// Options tunes a Detector
type Options struct {
	// HomeSpace is the space whose index parents top-level index items.
	HomeSpace string
	Jobs      int
	Progress  progress.Reporter
}

// New creates a detector
func New(reader Reader, opts Options, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HomeSpace == "" {
		opts.HomeSpace = "Main"
	}
	return &Detector{
		reader:    reader,
		homeSpace: opts.HomeSpace,
		jobs:      opts.Jobs,
		progress:  opts.Progress,
		logger:    logger,
	}
}

// LocationParent returns the parent implied by where p is stored, and false
// for the home space index which has none.
func LocationParent(p paths.Path, homeSpace string) (paths.Path, bool) {
	if p.IsTerminal() {
		return p.Space.Index(), true
	}
	if up, ok := p.Space.Parent(); ok {
		return up.Index(), true
	}
	home := paths.NewSpace(p.Namespace(), homeSpace)
	if p.Space.Equal(home) {
		return paths.Path{}, false
	}
	return home.Index(), true
}

// Detect reads every item and reports those whose declared parent differs
// from their location parent. Unreadable items are listed in Report.Failed.
func (d *Detector) Detect(ctx context.Context, items []paths.Path) (*Report, error) {
	byKey := make(map[string]paths.Path, len(items))
	keys := make([]string, 0, len(items))
	for _, p := range items {
		if _, dup := byKey[p.Key()]; dup {
			continue
		}
		byKey[p.Key()] = p
		keys = append(keys, p.Key())
	}

	var (
		mu     sync.Mutex
		broken []Breakage
	)

	op := &bulk.Operation{
		Jobs:            d.jobs,
		ContinueOnError: true,
		Progress:        d.progress,
		Label:           "Checking hierarchy",
	}
	result := op.Execute(ctx, keys, func(ctx context.Context, key string) error {
		p := byKey[key]
		item, err := d.reader.ReadItem(ctx, p)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("item %s: %w", p, domain.ErrNotFound)
		}

		location, ok := LocationParent(p, d.homeSpace)
		if !ok {
			return nil
		}
		if item.Parent != nil && item.Parent.Equal(location) {
			return nil
		}

		mu.Lock()
		broken = append(broken, Breakage{Path: p, Declared: item.Parent, Location: location})
		mu.Unlock()
		return nil
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, e := range result.Errors {
		d.logger.Warn("failed to check item", "path", e.Item, "error", e.Error)
	}

	sort.Slice(broken, func(i, j int) bool {
		return broken[i].Path.String() < broken[j].Path.String()
	})
	d.logger.Info("hierarchy checked", "items", len(keys), "broken", len(broken), "failed", result.Failed)

	return &Report{
		Checked: result.Succeeded,
		Broken:  broken,
		Failed:  result.Errors,
		Reads:   result,
	}, nil
}
