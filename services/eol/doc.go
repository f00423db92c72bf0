// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package eol detects Windows-style (CRLF) line endings in pull request files.
//
// The package is the validation core of the EOL blocker. It knows nothing
// about comments, labels, or webhooks; callers hand it a list of changed
// files and receive the ordered list of offending filenames.
//
// # Architecture
//
//	ChangedFiles → Exclusion Filter → Content Fetcher → CRLF Detector → Result
//	                                                                      ↓
//	                                                               Report Generator
//
// Content is always fetched from the hosting platform. Reading a local
// checkout is not an option: git may normalise line endings on checkout
// (core.autocrlf, .gitattributes eol=lf) and hide the very bytes we look for.
//
// # Exclusions
//
// Paths are matched with doublestar globs. When no patterns are configured
// the default set skips common image formats:
//
//	**/**.{png,jpg,jpeg,gif,bmp}
//
// Matching is case-sensitive. "IMAGE.PNG" is inspected.
//
// # Usage
//
//	fetcher := eol.NewHTTPFetcher(eol.FetcherConfig{Token: token})
//	v := eol.NewValidator(fetcher, eol.WithConcurrency(4))
//
//	result, err := v.Validate(ctx, files, patterns)
//	if err != nil {
//	    // context cancelled
//	}
//	if !result.Clean() {
//	    body := eol.RenderReport(result.ErrorFiles, headBranch)
//	}
//
// # Thread Safety
//
// Validator and HTTPFetcher are safe for concurrent use. Detection and
// report rendering are pure functions.
package eol
