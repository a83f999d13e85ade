package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
)

// TermsResolver resolves warranty coverage terms for a brand+model pair.
// Fresh cache hits return directly; misses go to the external source; any
// lookup failure falls back to the generic rule set, which is also cached
// so a failing source is not hammered inside the TTL window.
type TermsResolver struct {
	cache    ports.TermsCacheRepository
	source   ports.TermsSource
	fallback ports.FallbackTerms
	ttl      time.Duration
	timeout  time.Duration
	now      ports.Clock
}

func NewTermsResolver(
	cache ports.TermsCacheRepository,
	source ports.TermsSource,
	fallback ports.FallbackTerms,
	ttl, timeout time.Duration,
	now ports.Clock,
) *TermsResolver {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &TermsResolver{
		cache:    cache,
		source:   source,
		fallback: fallback,
		ttl:      ttl,
		timeout:  timeout,
		now:      now,
	}
}

// Resolve never fails: the generic fallback guarantees an entry even when
// the cache and the external source are both unusable.
func (r *TermsResolver) Resolve(ctx context.Context, brand, model string) *domain.TermsEntry {
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, brand, model)
		if err != nil {
			slog.Warn("terms_cache_read_failed", "brand", brand, "model", model, "error", err)
		} else if cached != nil && cached.Fresh(r.now().UTC(), r.ttl) {
			return cached
		}
	}

	if r.source != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
		entry, err := r.source.Fetch(fetchCtx, brand, model)
		cancel()
		if err == nil && entry != nil {
			entry.Brand = brand
			entry.Model = model
			entry.Source = "lookup"
			entry.FetchedAt = r.now().UTC()
			r.put(ctx, entry)
			return entry
		}
		if err != nil {
			slog.Warn("terms_lookup_failed",
				"brand", brand,
				"model", model,
				"error", domain.WrapError(domain.ErrResolverUnreachable, "fetch terms", err),
			)
		}
	}

	entry := r.defaults(brand, model)
	entry.Source = "fallback"
	entry.FetchedAt = r.now().UTC()
	// Negative caching: remember the fallback so the failed lookup is not
	// repeated for every canonicalization within the TTL.
	r.put(ctx, entry)
	return entry
}

func (r *TermsResolver) put(ctx context.Context, entry *domain.TermsEntry) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Put(ctx, entry); err != nil {
		slog.Warn("terms_cache_write_failed", "brand", entry.Brand, "model", entry.Model, "error", err)
	}
}

func (r *TermsResolver) defaults(brand, model string) *domain.TermsEntry {
	if r.fallback != nil {
		if entry := r.fallback.Defaults(brand, model); entry != nil {
			entry.Brand = brand
			entry.Model = model
			return entry
		}
	}
	return &domain.TermsEntry{
		Brand:          brand,
		Model:          model,
		DurationMonths: 12,
		Terms: []string{
			"Standard coverage for 12 months from purchase date.",
			"Manufacturing defects covered under normal usage.",
		},
		Exclusions: []string{
			"Physical, liquid, or accidental damage.",
			"Unauthorized repairs or modifications.",
		},
		ClaimSteps: []string{
			"Keep your invoice or receipt ready.",
			"Share model/serial details with support.",
		},
	}
}
