// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log/slog"

	"github.com/AleutianAI/eolblocker/cmd/eolblocker/config"
	"github.com/AleutianAI/eolblocker/services/cache"
	"github.com/AleutianAI/eolblocker/services/gate"
)

// openVerdictCache opens the configured verdict store and returns the gate
// options that use it. A store that cannot be opened is logged and
// skipped; the check runs uncached.
func openVerdictCache(cfg *config.Config, logger *slog.Logger) ([]gate.Option, func()) {
	if !cfg.Cache.Enabled() {
		return nil, func() {}
	}

	cacheCfg := cfg.Cache
	cacheCfg.Logger = logger.With(slog.String("component", "verdict_cache"))
	store, err := cache.Open(cacheCfg)
	if err != nil {
		logger.Warn("Verdict cache unavailable; continuing without it",
			slog.String("dir", cfg.Cache.Dir),
			slog.String("error", err.Error()),
		)
		return nil, func() {}
	}

	logger.Debug("Verdict cache opened", slog.String("dir", cfg.Cache.Dir))
	return []gate.Option{gate.WithVerdictCache(store)}, func() {
		if err := store.Close(); err != nil {
			logger.Warn("Closing verdict cache failed", slog.String("error", err.Error()))
		}
	}
}
