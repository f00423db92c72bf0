// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eol

import (
	"context"
	"sync"
)

// VerdictCache remembers whether a blob contains CRLF, keyed by blob SHA.
//
// A blob SHA names exact content, so a stored verdict never goes stale.
// Lookup and Store errors are logged by the Validator and otherwise
// ignored; the file is fetched as if the cache were absent.
type VerdictCache interface {
	Lookup(ctx context.Context, sha string) (crlf bool, found bool, err error)
	Store(ctx context.Context, sha string, crlf bool) error
}

// MemoryVerdictCache is a process-local VerdictCache.
//
// Thread Safety: Safe for concurrent use.
type MemoryVerdictCache struct {
	mu       sync.RWMutex
	verdicts map[string]bool
}

// NewMemoryVerdictCache creates an empty cache.
func NewMemoryVerdictCache() *MemoryVerdictCache {
	return &MemoryVerdictCache{verdicts: make(map[string]bool)}
}

// Lookup returns the stored verdict for sha.
func (c *MemoryVerdictCache) Lookup(_ context.Context, sha string) (bool, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	crlf, ok := c.verdicts[sha]
	return crlf, ok, nil
}

// Store records the verdict for sha.
func (c *MemoryVerdictCache) Store(_ context.Context, sha string, crlf bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts[sha] = crlf
	return nil
}

// Len returns the number of stored verdicts.
func (c *MemoryVerdictCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.verdicts)
}

var _ VerdictCache = (*MemoryVerdictCache)(nil)
