// Package pastes ties the entry store and the render cache together into
// the operations a front end needs: create, view, raw read, delete and
// owner allocation.
package pastes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pastekeeper/internal/common"
	"github.com/dmitrijs2005/pastekeeper/internal/ident"
	"github.com/dmitrijs2005/pastekeeper/internal/logging"
	"github.com/dmitrijs2005/pastekeeper/internal/render"
	"github.com/dmitrijs2005/pastekeeper/internal/store"
)

// maxAttempts bounds how many random identifiers Create tries before giving up.
const maxAttempts = 8

// Entries is the subset of *store.Store used by the service.
type Entries interface {
	Insert(ctx context.Context, id ident.ID, e store.InsertEntry) error
	Get(ctx context.Context, id ident.ID) (store.ReadEntry, error)
	GetOwner(ctx context.Context, id ident.ID) (*int64, error)
	Delete(ctx context.Context, id ident.ID) error
	NextSequence(ctx context.Context) (int64, error)
}

// Views is the subset of *render.Cache used by the service.
type Views interface {
	GetOrRender(ctx context.Context, key render.Key, fn render.Renderer) (string, error)
	Purge(id ident.ID) int
}

// Service implements paste operations.
type Service struct {
	entries       Entries
	views         Views
	renderer      render.Renderer
	maxExpiration time.Duration
	logger        logging.Logger
	newID         func() (ident.ID, error)
}

// NewService builds a Service. A zero maxExpiration leaves lifetimes as
// requested; otherwise every entry expires within maxExpiration.
func NewService(entries Entries, views Views, renderer render.Renderer, maxExpiration time.Duration, logger logging.Logger) *Service {
	if renderer == nil {
		renderer = render.Plain
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		entries:       entries,
		views:         views,
		renderer:      renderer,
		maxExpiration: maxExpiration,
		logger:        logger.With("component", "pastes"),
		newID:         ident.Random,
	}
}

// Create stores e under a fresh random identifier and returns the key of its
// default view.
func (s *Service) Create(ctx context.Context, e store.InsertEntry) (render.Key, error) {
	e.Expires = s.clampExpiration(e.Expires)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return render.Key{}, fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}

		err = s.entries.Insert(ctx, id, e)
		if err == nil {
			s.logger.Info(ctx, "entry created", "id", id.String(), "burn_after_reading", e.BurnAfterReading)
			return render.NewKey(id, e.Extension), nil
		}
		if !errors.Is(err, common.ErrorDuplicateID) {
			return render.Key{}, err
		}
		s.logger.Debug(ctx, "identifier collision", "id", id.String(), "attempt", attempt)
	}
	return render.Key{}, fmt.Errorf("create: no free identifier after %d attempts: %w", maxAttempts, common.ErrorDuplicateID)
}

func (s *Service) clampExpiration(expires *uint32) *uint32 {
	if s.maxExpiration <= 0 {
		return expires
	}
	limit := uint32(min(s.maxExpiration/time.Second, time.Duration(^uint32(0))))
	if expires == nil || *expires > limit {
		return &limit
	}
	return expires
}

// View returns the rendered form of key.
func (s *Service) View(ctx context.Context, key render.Key) (string, error) {
	return s.views.GetOrRender(ctx, key, s.renderer)
}

// Raw returns the stored text of id. Like View, it consumes
// burn-after-reading entries.
func (s *Service) Raw(ctx context.Context, id ident.ID) (store.ReadEntry, error) {
	return s.entries.Get(ctx, id)
}

// Delete removes id on behalf of requester, who must own it. Cached renders
// of id are dropped as well.
func (s *Service) Delete(ctx context.Context, id ident.ID, requester *int64) error {
	owner, err := s.entries.GetOwner(ctx, id)
	if err != nil {
		return err
	}
	if owner == nil || requester == nil || *owner != *requester {
		return fmt.Errorf("delete %s: %w", id, common.ErrorUnauthorized)
	}

	if err := s.entries.Delete(ctx, id); err != nil {
		return err
	}
	purged := s.views.Purge(id)
	s.logger.Info(ctx, "entry deleted", "id", id.String(), "purged_renders", purged)
	return nil
}

// NewOwner mints a fresh owner reference.
func (s *Service) NewOwner(ctx context.Context) (int64, error) {
	return s.entries.NextSequence(ctx)
}
