// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package httpclient

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Batch calls fn for every key with at most limit calls in flight and
// returns the results in key order. The first error cancels the remaining
// calls and is returned.
func Batch[K any, T any](ctx context.Context, keys []K, limit int, fn func(ctx context.Context, key K) (T, error)) ([]T, error) {
	results := make([]T, len(keys))
	if len(keys) == 0 {
		return results, nil
	}
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, key := range keys {
		g.Go(func() error {
			v, err := fn(gctx, key)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
