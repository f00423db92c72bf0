// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package github adapts the GitHub REST API to the gate's
// PullRequestSource and ReportingSink.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"github.com/AleutianAI/eolblocker/services/eol"
	"github.com/AleutianAI/eolblocker/services/gate"
)

// filesPerPage is the maximum page size of the pull request files API.
const filesPerPage = 100

// ErrInvalidConfig indicates a ClientConfig is missing required fields.
var ErrInvalidConfig = errors.New("invalid github client config")

// ClientConfig identifies one pull request and how to reach it.
type ClientConfig struct {
	// Token authenticates every API and content request.
	Token string

	// Owner and Repo name the repository.
	Owner string
	Repo  string

	// Number is the pull request number.
	Number int

	// BaseURL overrides the REST endpoint, e.g. a GitHub Enterprise
	// "https://ghe.example.com/api/v3". Default: https://api.github.com/
	BaseURL string

	// HTTPClient is shared by the API client and the content fetcher.
	// Default: http.DefaultClient for the API, a 30s client for content.
	HTTPClient *http.Client

	// Fetch configures content retrieval. Token and HTTPClient are filled
	// in from this config when unset.
	Fetch eol.FetcherConfig
}

// Client talks to one pull request.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	api     *gh.Client
	owner   string
	repo    string
	number  int
	fetcher eol.ContentFetcher
}

var (
	_ gate.PullRequestSource = (*Client)(nil)
	_ gate.ReportingSink     = (*Client)(nil)
)

// NewClient creates a Client for config.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Owner == "" || config.Repo == "" {
		return nil, fmt.Errorf("%w: owner and repo are required", ErrInvalidConfig)
	}
	if config.Number <= 0 {
		return nil, fmt.Errorf("%w: pull request number must be positive, got %d", ErrInvalidConfig, config.Number)
	}

	api := gh.NewClient(config.HTTPClient)
	if config.Token != "" {
		api = api.WithAuthToken(config.Token)
	}
	if config.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("%w: base url: %v", ErrInvalidConfig, err)
		}
		api.BaseURL = base
	}

	fetchCfg := config.Fetch
	if fetchCfg.Token == "" {
		fetchCfg.Token = config.Token
	}
	if fetchCfg.HTTPClient == nil && config.HTTPClient != nil {
		fetchCfg.HTTPClient = config.HTTPClient
	}

	return &Client{
		api:     api,
		owner:   config.Owner,
		repo:    config.Repo,
		number:  config.Number,
		fetcher: eol.NewHTTPFetcher(fetchCfg),
	}, nil
}

// ListChangedFiles returns every file in the pull request, in API order.
//
// Description:
//
//	Pages through the pull request files endpoint. Each file's locator is
//	its contents-API URL at the head commit, falling back to the raw URL
//	when the API omits it. GitHub stops listing after 3000 files.
//
// Outputs:
//
//	[]eol.ChangedFile - Files in API order
//	error - API failure
func (c *Client) ListChangedFiles(ctx context.Context) ([]eol.ChangedFile, error) {
	opts := &gh.ListOptions{PerPage: filesPerPage}

	var files []eol.ChangedFile
	for {
		page, resp, err := c.api.PullRequests.ListFiles(ctx, c.owner, c.repo, c.number, opts)
		if err != nil {
			return nil, fmt.Errorf("list files for %s/%s#%d: %w", c.owner, c.repo, c.number, err)
		}
		for _, f := range page {
			files = append(files, toChangedFile(f))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

func toChangedFile(f *gh.CommitFile) eol.ChangedFile {
	locator := f.GetContentsURL()
	if locator == "" {
		locator = f.GetRawURL()
	}
	return eol.ChangedFile{
		Filename:       f.GetFilename(),
		ContentLocator: locator,
		Status:         eol.FileStatus(f.GetStatus()),
		SHA:            f.GetSHA(),
	}
}

// HeadBranch returns the name of the pull request's head branch.
func (c *Client) HeadBranch(ctx context.Context) (string, error) {
	pr, _, err := c.api.PullRequests.Get(ctx, c.owner, c.repo, c.number)
	if err != nil {
		return "", fmt.Errorf("get pull request %s/%s#%d: %w", c.owner, c.repo, c.number, err)
	}
	ref := pr.GetHead().GetRef()
	if ref == "" {
		return "", fmt.Errorf("pull request %s/%s#%d has no head branch", c.owner, c.repo, c.number)
	}
	return ref, nil
}

// FetchContent retrieves a file's stored content.
func (c *Client) FetchContent(ctx context.Context, locator string) (string, error) {
	return c.fetcher.FetchContent(ctx, locator)
}

// PostComment adds an issue comment to the pull request.
func (c *Client) PostComment(ctx context.Context, body string) error {
	_, _, err := c.api.Issues.CreateComment(ctx, c.owner, c.repo, c.number, &gh.IssueComment{
		Body: gh.String(body),
	})
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// AddLabel adds name to the pull request, creating the label if the
// repository does not have it yet.
func (c *Client) AddLabel(ctx context.Context, name string) error {
	if _, _, err := c.api.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, c.number, []string{name}); err != nil {
		return fmt.Errorf("add label %q: %w", name, err)
	}
	return nil
}

// RemoveLabel removes name from the pull request. A 404 is reported as
// gate.ErrLabelNotFound.
func (c *Client) RemoveLabel(ctx context.Context, name string) error {
	resp, err := c.api.Issues.RemoveLabelForIssue(ctx, c.owner, c.repo, c.number, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("remove label %q: %w", name, gate.ErrLabelNotFound)
		}
		return fmt.Errorf("remove label %q: %w", name, err)
	}
	return nil
}
