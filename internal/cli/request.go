package cli

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/gqlcache/internal/fetchopts"
	"github.com/roach88/gqlcache/internal/gql"
)

// RequestFlags are the operation flags shared by fetch and fingerprint.
type RequestFlags struct {
	Vars    []string
	Files   []string
	Headers []string
	URL     string
}

// operation builds a gql.Operation from query and the --var/--file flags.
// A --var value is decoded as JSON when it parses, otherwise kept as a
// string.
func (r RequestFlags) operation(query string) (gql.Operation, error) {
	op := gql.Operation{Query: query}
	if len(r.Vars) == 0 && len(r.Files) == 0 {
		return op, nil
	}

	op.Variables = make(map[string]any, len(r.Vars)+len(r.Files))
	for _, kv := range r.Vars {
		name, raw, err := splitPair(kv, "--var")
		if err != nil {
			return gql.Operation{}, err
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		op.Variables[name] = v
	}
	for _, kv := range r.Files {
		name, path, err := splitPair(kv, "--file")
		if err != nil {
			return gql.Operation{}, err
		}
		f, err := readFile(path)
		if err != nil {
			return gql.Operation{}, err
		}
		op.Variables[name] = f
	}
	return op, nil
}

// override applies configured headers, then --header flags, then --url.
func (r RequestFlags) override(configured map[string]string) (fetchopts.Override, error) {
	headers := make(map[string]string, len(configured)+len(r.Headers))
	for k, v := range configured {
		headers[k] = v
	}
	for _, kv := range r.Headers {
		name, value, err := splitPair(kv, "--header")
		if err != nil {
			return nil, err
		}
		headers[name] = value
	}
	if len(headers) == 0 && r.URL == "" {
		return nil, nil
	}

	url := r.URL
	return func(p *fetchopts.Params) {
		for k, v := range headers {
			p.Headers[k] = v
		}
		if url != "" {
			p.URL = url
		}
	}, nil
}

func splitPair(kv, flag string) (string, string, error) {
	name, value, ok := strings.Cut(kv, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid %s %q: want name=value", flag, kv)
	}
	return name, value, nil
}

func readFile(path string) (*gql.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return &gql.File{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        data,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
