package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any page can request.
	MaxLimit = 100

	cursorPrefix = "o"
)

// Params holds pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is an opaque position in a sorted listing. Review listings can be
// ordered by several columns, so the cursor carries a row offset rather than
// a keyset.
type Cursor struct {
	Offset int
}

// Page is a slice of results plus the cursor for the next page, if any.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalized limit plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor builds an opaque cursor string.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%d", cursorPrefix, cursor.Offset)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a cursor. A blank value is the first page.
func ParseCursor(value string) (Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	prefix, raw, ok := strings.Cut(string(decoded), "|")
	if !ok || prefix != cursorPrefix {
		return Cursor{}, fmt.Errorf("invalid cursor format")
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return Cursor{}, fmt.Errorf("invalid cursor offset")
	}
	return Cursor{Offset: offset}, nil
}

// BuildPage trims a buffered result set (fetched with LimitWithBuffer) down to
// limit rows and computes the next cursor.
func BuildPage[T any](rows []T, cursor Cursor, limit int) Page[T] {
	limit = NormalizeLimit(limit)
	page := Page[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.NextCursor = EncodeCursor(Cursor{Offset: cursor.Offset + limit})
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}

// DedupeBy keeps the first occurrence of each key and preserves order.
// Paged listings that shift between requests can repeat rows; callers collapse
// them here instead of surfacing an error.
func DedupeBy[T any, K comparable](items []T, key func(T) K) []T {
	if len(items) == 0 {
		return items
	}
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
