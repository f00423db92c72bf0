// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/eolblocker/pkg/logging"
	"github.com/AleutianAI/eolblocker/services/eol"
)

// configValidate is shared by every Validate call. Custom tags are
// registered in init.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("exclude_globs", validateExcludeGlobs)
	_ = configValidate.RegisterValidation("loglevel", validateLogLevel)
	_ = configValidate.RegisterValidation("owner_repo", validateOwnerRepo)
}

func validateExcludeGlobs(fl validator.FieldLevel) bool {
	return eol.ValidatePatterns(eol.ParsePatternList(fl.Field().String())) == nil
}

func validateLogLevel(fl validator.FieldLevel) bool {
	_, err := logging.ParseLevel(fl.Field().String())
	return err == nil
}

func validateOwnerRepo(fl validator.FieldLevel) bool {
	owner, repo, ok := strings.Cut(fl.Field().String(), "/")
	return ok && owner != "" && repo != "" && !strings.Contains(repo, "/")
}

// Getenv looks up an environment variable. os.Getenv satisfies it.
type Getenv func(key string) string

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and the environment, then validates it.
//
// Description:
//
//	Later sources win: defaults, then the file, then Actions inputs
//	(INPUT_*) and runner variables (GITHUB_*). Every failure is a
//	*ConfigurationError.
//
// Inputs:
//
//	path - YAML file, or "" for none
//	getenv - Environment lookup; nil means os.Getenv
//
// Outputs:
//
//	*Config - Validated configuration
//	error - *ConfigurationError
func Load(path string, getenv Getenv) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := DefaultConfig()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigurationError{Field: "config_file", Err: err}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return &ConfigurationError{Field: "config_file", Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	return nil
}

// applyEnv overlays Actions inputs and runner variables. Empty values
// leave the current setting alone.
func applyEnv(cfg *Config, getenv Getenv) error {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := strings.TrimSpace(getenv(key)); v != "" {
				*dst = v
				return
			}
		}
	}
	setBool := func(dst *bool, field, key string) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigurationError{Field: field, Err: fmt.Errorf("%s: %w", key, err)}
		}
		*dst = b
		return nil
	}
	setInt := func(dst *int, field, key string) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigurationError{Field: field, Err: fmt.Errorf("%s: %w", key, err)}
		}
		*dst = n
		return nil
	}

	setString(&cfg.RepoToken, "INPUT_REPOTOKEN")
	if cfg.RepoToken == "" {
		setString(&cfg.RepoToken, "GITHUB_TOKEN")
	}
	setString(&cfg.ExcludeFiles, "INPUT_EXCLUDEFILES")
	setString(&cfg.Label, "INPUT_LABEL")
	setString(&cfg.Log.Level, "INPUT_LOGLEVEL", "EOLBLOCKER_LOG_LEVEL")

	setString(&cfg.GitHub.APIURL, "GITHUB_API_URL")
	setString(&cfg.GitHub.Repository, "GITHUB_REPOSITORY")
	setString(&cfg.GitHub.EventPath, "GITHUB_EVENT_PATH")
	setString(&cfg.GitHub.StepSummary, "GITHUB_STEP_SUMMARY")
	setString(&cfg.GitHub.OutputPath, "GITHUB_OUTPUT")

	setString(&cfg.Cache.Dir, "INPUT_CACHEDIR", "EOLBLOCKER_CACHE_DIR")

	setString(&cfg.Server.Addr, "EOLBLOCKER_ADDR")
	setString(&cfg.Server.WebhookSecret, "EOLBLOCKER_WEBHOOK_SECRET")

	if err := setBool(&cfg.DisableLabel, "disable_label", "INPUT_DISABLELABEL"); err != nil {
		return err
	}
	if err := setBool(&cfg.IncludeRemoved, "include_removed", "INPUT_INCLUDEREMOVED"); err != nil {
		return err
	}
	if err := setInt(&cfg.Concurrency, "concurrency", "INPUT_CONCURRENCY"); err != nil {
		return err
	}
	return setInt(&cfg.Fetch.MaxAttempts, "fetch.max_attempts", "INPUT_MAXATTEMPTS")
}

// Validate checks every field and returns the first problem as a
// *ConfigurationError.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigurationError{Field: fieldName(fe), Err: describe(c, fe)}
	}
	return &ConfigurationError{Err: err}
}

// fieldName maps a validator namespace ("Config.Fetch.MaxAttempts") to
// the yaml key path ("fetch.max_attempts").
func fieldName(fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 0 && parts[0] == "Config" {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func describe(c *Config, fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "RepoToken" {
			return errors.New("required (set the repoToken input)")
		}
		return errors.New("required")
	case "exclude_globs":
		return eol.ValidatePatterns(c.Patterns())
	case "loglevel":
		_, err := logging.ParseLevel(c.Log.Level)
		return err
	case "owner_repo":
		return fmt.Errorf("%q is not owner/repo", fe.Value())
	default:
		return fmt.Errorf("failed %q check (value %v)", fe.Tag(), fe.Value())
	}
}

// snake converts a Go field name to its yaml key. A run of capitals is
// one word, so "GCInterval" becomes "gc_interval".
func snake(s string) string {
	switch s {
	case "GitHub":
		return "github"
	case "APIURL":
		return "api_url"
	}
	runes := []rune(s)
	var sb strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
