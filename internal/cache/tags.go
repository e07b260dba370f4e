// Package cache provides tagged read-through caching over the shared store
// and the invalidation protocol that keeps cached read paths consistent with
// writes.
//
// Tags form a closed taxonomy. Every cached read registers under one or more
// tags; every mutation invalidates the superset of tags its change could be
// cached under. Over-invalidation costs a recompute; under-invalidation is a
// stale-read bug.
package cache

// Tag is a logical grouping of cached entries, invalidated together.
type Tag string

// Static tags.
const (
	// TagPromptList covers every paginated/filtered listing of prompts.
	TagPromptList Tag = "prompts"
	// TagCategories covers category metadata and per-category listings.
	TagCategories Tag = "categories"
	// TagSearch covers free-text search results. Search spans all fields,
	// so any content change invalidates it broadly.
	TagSearch Tag = "search"
	// TagAdminStats covers aggregate counts on the admin dashboard.
	TagAdminStats Tag = "admin-stats"
)

// Parameterized tags.

// PromptByID tags the detail view of one prompt by identifier.
func PromptByID(id string) Tag { return Tag("prompt:id:" + id) }

// PromptBySlug tags the detail view of one prompt by its human-readable key.
func PromptBySlug(slug string) Tag { return Tag("prompt:slug:" + slug) }

// UserPrompts tags a user's own-prompts collection.
func UserPrompts(userID string) Tag { return Tag("user:" + userID + ":prompts") }
