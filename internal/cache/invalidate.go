package cache

import (
	"context"
	"errors"

	"github.com/promptexify/promptexify/internal/log"
	"github.com/promptexify/promptexify/internal/store"
)

// Invalidator applies the write-path contract: every mutation reachable
// through a cached read invalidates at least the necessary tag set.
type Invalidator struct {
	s store.Store

	// OnInvalidate is a metrics hook per invalidated tag.
	OnInvalidate func(tag string)
}

func NewInvalidator(s store.Store) *Invalidator {
	return &Invalidator{s: s}
}

// PromptMutation describes a write to one prompt: create, update, delete, or
// status transition.
type PromptMutation struct {
	ID      string
	Slug    string
	OwnerID string

	// CategoryChanged marks a reclassification, which additionally stales
	// category metadata and per-category listings.
	CategoryChanged bool
}

// PromptChanged invalidates every tag the mutated prompt could be cached
// under: the general listing, both single-item tags, search results (content
// affects search regardless of field), the owner's collection, aggregate
// stats, and category data when classification changed.
//
// Errors are joined, not short-circuited: a failure on one tag must not skip
// the rest of the set.
func (i *Invalidator) PromptChanged(ctx context.Context, m PromptMutation) error {
	tags := []Tag{
		TagPromptList,
		PromptByID(m.ID),
		TagSearch,
		TagAdminStats,
	}
	if m.Slug != "" {
		tags = append(tags, PromptBySlug(m.Slug))
	}
	if m.OwnerID != "" {
		tags = append(tags, UserPrompts(m.OwnerID))
	}
	if m.CategoryChanged {
		tags = append(tags, TagCategories)
	}

	var errs []error
	for _, t := range tags {
		if err := i.s.InvalidateTag(ctx, string(t)); err != nil {
			errs = append(errs, err)
			continue
		}
		if i.OnInvalidate != nil {
			i.OnInvalidate(string(t))
		}
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		log.FromContext(ctx).Error(ctx, err, "cache invalidation incomplete, stale reads possible",
			"prompt_id", m.ID)
		return err
	}
	return nil
}
