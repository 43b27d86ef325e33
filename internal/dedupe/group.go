// Package dedupe groups records by a business key and picks the record to
// keep inside each group. Callers supply the key and recency extractors.
package dedupe

import (
	"slices"
	"sort"
	"strings"
)

// Resolution is the keep/delete decision for one duplicate group.
type Resolution[T any] struct {
	Key    string
	Keep   T
	Delete []T
}

// Group buckets items by key. Keys are trimmed and empty keys are left out.
// Members keep their original collection order.
func Group[T any](items []T, key func(T) string) map[string][]T {
	groups := make(map[string][]T)
	for _, item := range items {
		k := strings.TrimSpace(key(item))
		if k == "" {
			continue
		}
		groups[k] = append(groups[k], item)
	}
	return groups
}

// Duplicates returns only the groups with more than one member.
func Duplicates[T any](items []T, key func(T) string) map[string][]T {
	groups := Group(items, key)
	for k, members := range groups {
		if len(members) < 2 {
			delete(groups, k)
		}
	}
	return groups
}

// Rank orders members most recent first. A missing recency value is the
// empty string and so ranks last. Equal values keep their original order.
func Rank[T any](members []T, recency func(T) string) []T {
	ranked := slices.Clone(members)
	sort.SliceStable(ranked, func(i, j int) bool {
		return recency(ranked[i]) > recency(ranked[j])
	})
	return ranked
}

// Resolve keeps the most recent member of a group and marks the rest for
// deletion. members must not be empty.
func Resolve[T any](key string, members []T, recency func(T) string) Resolution[T] {
	ranked := Rank(members, recency)
	return Resolution[T]{
		Key:    key,
		Keep:   ranked[0],
		Delete: ranked[1:],
	}
}

// ResolveAll resolves every group, ordered by key.
func ResolveAll[T any](groups map[string][]T, recency func(T) string) []Resolution[T] {
	out := make([]Resolution[T], 0, len(groups))
	for _, k := range Keys(groups) {
		out = append(out, Resolve(k, groups[k], recency))
	}
	return out
}

// Keys returns the map keys sorted for stable reports.
func Keys[T any](groups map[string][]T) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Surplus is the number of records that resolving every group would delete.
func Surplus[T any](groups map[string][]T) int {
	n := 0
	for _, members := range groups {
		n += len(members) - 1
	}
	return n
}
