package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envReader reads typed settings from the environment. Unset or empty
// variables take the default; malformed ones are collected so a typo in a
// deployment fails startup instead of silently falling back.
type envReader struct {
	lookup func(string) string
	errs   []error
}

func newEnvReader() *envReader {
	return &envReader{lookup: os.Getenv}
}

// str returns the first non-empty variable among keys, or def
func (r *envReader) str(def string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(r.lookup(key)); v != "" {
			return v
		}
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v := strings.TrimSpace(r.lookup(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (r *envReader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(r.lookup(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.lookup(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

// list splits a comma separated variable into trimmed, non-empty items
func (r *envReader) list(key string, def []string) []string {
	var items []string
	for _, part := range strings.Split(r.lookup(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return def
	}
	return items
}

func (r *envReader) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid environment: %w", errors.Join(r.errs...))
}

// runningOnLambda detects the Lambda execution environment
func runningOnLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" ||
		os.Getenv("LAMBDA_TASK_ROOT") != "" ||
		os.Getenv("AWS_EXECUTION_ENV") != ""
}
