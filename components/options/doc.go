// Package options serves static option lists over HTTP in the shape lookup
// fetchers expect: {"data": [{"value": ..., "label": ...}]}.
//
// Lists are keyed by name and served under <RoutePath>/<name>. The q
// parameter filters by label or value substring, limit caps the result, and
// any other query parameter must match an attribute of the item, so
// /api/lookups/cities?country=se only returns Swedish cities.
package options
