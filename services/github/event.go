// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	gh "github.com/google/go-github/v66/github"
)

// ErrNotPullRequest indicates an event payload without a pull request.
var ErrNotPullRequest = errors.New("event is not a pull request event")

// PullRequestEvent is the part of a pull_request event the gate needs.
type PullRequestEvent struct {
	Action     string `json:"action"`
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Number     int    `json:"number"`
	HeadBranch string `json:"head_branch"`
	HeadSHA    string `json:"head_sha"`
}

// ParsePullRequestEvent decodes a pull_request or pull_request_target
// event payload.
func ParsePullRequestEvent(payload []byte) (*PullRequestEvent, error) {
	var event gh.PullRequestEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event.PullRequest == nil {
		return nil, ErrNotPullRequest
	}

	pr := event.GetPullRequest()
	number := event.GetNumber()
	if number == 0 {
		number = pr.GetNumber()
	}

	// The base repository owns the pull request even when the head is a fork.
	repo := event.GetRepo()
	if repo == nil {
		repo = pr.GetBase().GetRepo()
	}

	return &PullRequestEvent{
		Action:     event.GetAction(),
		Owner:      repo.GetOwner().GetLogin(),
		Repo:       repo.GetName(),
		Number:     number,
		HeadBranch: pr.GetHead().GetRef(),
		HeadSHA:    pr.GetHead().GetSHA(),
	}, nil
}

// LoadEvent reads and decodes the event file at path, normally
// $GITHUB_EVENT_PATH.
func LoadEvent(path string) (*PullRequestEvent, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}
	return ParsePullRequestEvent(payload)
}
