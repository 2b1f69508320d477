package fetchopts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/gqlcache/internal/gql"
)

// FilePaths records one upload file and every variable path it occupies.
type FilePaths struct {
	File  *gql.File
	Paths []string
}

// operationJSON is the wire shape of an operation.
type operationJSON struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Build turns op into request parameters and applies override, if any.
//
// An error is returned only when the variables cannot be JSON encoded.
func Build(op gql.Operation, override Override) (Params, error) {
	params := Params{
		URL:    DefaultURL,
		Method: http.MethodPost,
		Headers: Header{
			"Accept": "application/json",
		},
	}

	var variables map[string]any
	var files []FilePaths
	if op.Variables != nil {
		clone, found := ExtractFiles(op.Variables, "variables")
		variables, _ = clone.(map[string]any)
		files = found
	}

	operations, err := marshalJSON(operationJSON{
		Query:     norm.NFC.String(op.Query),
		Variables: variables,
	})
	if err != nil {
		return Params{}, fmt.Errorf("build fetch options: %w", err)
	}

	if len(files) == 0 {
		params.Headers["Content-Type"] = "application/json"
		params.Body = JSONBody(operations)
	} else {
		form := &MultipartForm{}
		form.Append("operations", operations)
		form.Append("map", fileMapJSON(files))
		for i, f := range files {
			form.AppendFile(strconv.Itoa(i+1), f.File)
		}
		params.Body = form
	}

	if override != nil {
		override(&params)
	}

	return params, nil
}

// ExtractFiles deep-clones value, replacing every *gql.File with nil, and
// returns the files with the dot paths where they occurred. A file found at
// several paths is reported once. Map keys are visited in sorted order so
// the encounter order is deterministic.
func ExtractFiles(value any, path string) (any, []FilePaths) {
	x := &extractor{index: make(map[*gql.File]int)}
	clone := x.walk(value, path)
	return clone, x.files
}

type extractor struct {
	files []FilePaths
	index map[*gql.File]int
}

func (x *extractor) record(f *gql.File, path string) {
	if i, ok := x.index[f]; ok {
		x.files[i].Paths = append(x.files[i].Paths, path)
		return
	}
	x.index[f] = len(x.files)
	x.files = append(x.files, FilePaths{File: f, Paths: []string{path}})
}

func (x *extractor) walk(value any, path string) any {
	switch v := value.(type) {
	case *gql.File:
		if v != nil {
			x.record(v, path)
		}
		return nil
	case map[string]any:
		if v == nil {
			return v
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(v))
		for _, k := range keys {
			out[k] = x.walk(v[k], joinPath(path, k))
		}
		return out
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = x.walk(elem, joinPath(path, strconv.Itoa(i)))
		}
		return out
	case []*gql.File:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = x.walk(f, joinPath(path, strconv.Itoa(i)))
		}
		return out
	default:
		return v
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// fileMapJSON encodes the multipart "map" field with keys in encounter order.
func fileMapJSON(files []FilePaths) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range files {
		if i > 0 {
			buf.WriteByte(',')
		}
		paths, _ := marshalJSON(f.Paths)
		fmt.Fprintf(&buf, "%q:%s", strconv.Itoa(i+1), paths)
	}
	buf.WriteByte('}')
	return buf.String()
}

// marshalJSON encodes v without HTML escaping and without the trailing
// newline json.Encoder appends.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
