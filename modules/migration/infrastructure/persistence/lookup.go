package persistence

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
)

const DefaultLookupBatch = 500

// distinct trims and dedups keys, dropping empty ones. fold lowercases them.
func distinct(keys []string, fold bool) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if fold {
			k = strings.ToLower(k)
		}
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func chunk(keys []string, size int) [][]string {
	if size <= 0 {
		size = DefaultLookupBatch
	}
	var chunks [][]string
	for len(keys) > size {
		chunks = append(chunks, keys[:size:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		chunks = append(chunks, keys)
	}
	return chunks
}

type keyQuery func(ctx context.Context, chunk []string) (pgx.Rows, error)

// existingKeys runs query once per chunk of lowercased keys and returns the
// lowercased keys it found.
func existingKeys(ctx context.Context, keys []string, size int, query keyQuery) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, c := range chunk(distinct(keys, true), size) {
		rows, err := query(ctx, c)
		if err != nil {
			return nil, err
		}
		if err := collectKeys(rows, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func collectKeys(rows pgx.Rows, into map[string]struct{}) error {
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return err
		}
		into[strings.ToLower(k)] = struct{}{}
	}
	return rows.Err()
}
