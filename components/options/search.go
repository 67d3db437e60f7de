package options

import (
	"sort"
	"strings"

	"github.com/goliatone/go-formengine/internal/coerce"
	"github.com/goliatone/go-formengine/pkg/schema"
)

// Search filters items by attribute filters and a label/value query. Prefix
// matches sort before substring matches; otherwise list order is kept.
func Search(items []Item, query string, filters map[string]string, limit int, opts Options) []Item {
	limit = clampLimit(limit, opts)
	if limit == 0 {
		return nil
	}

	candidates := make([]Item, 0, len(items))
	for _, item := range items {
		if matchesFilters(item, filters) {
			candidates = append(candidates, item)
		}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		if opts.EmptySearchMode != EmptySearchAll {
			return nil
		}
		if len(candidates) > limit {
			candidates = candidates[:limit]
		}
		return candidates
	}

	q := strings.ToLower(query)
	matches := make([]matchedItem, 0, 32)
	for _, item := range candidates {
		label := strings.ToLower(item.Label)
		value := strings.ToLower(coerce.String(item.Value))
		if !strings.Contains(label, q) && !strings.Contains(value, q) {
			continue
		}
		matches = append(matches, matchedItem{
			item:     item,
			isPrefix: strings.HasPrefix(label, q) || strings.HasPrefix(value, q),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].isPrefix && !matches[j].isPrefix
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]Item, 0, len(matches))
	for _, match := range matches {
		out = append(out, match.item)
	}
	return out
}

// SearchOptions runs Search and converts the result to schema options.
func SearchOptions(items []Item, query string, filters map[string]string, limit int, opts Options) []schema.Option {
	results := Search(items, query, filters, limit, opts)
	if len(results) == 0 {
		return nil
	}

	out := make([]schema.Option, 0, len(results))
	for _, item := range results {
		out = append(out, schema.Option{Value: item.Value, Label: item.Label})
	}
	return out
}

func matchesFilters(item Item, filters map[string]string) bool {
	for key, want := range filters {
		if !strings.EqualFold(item.Attrs[key], want) {
			return false
		}
	}
	return true
}

type matchedItem struct {
	item     Item
	isPrefix bool
}
