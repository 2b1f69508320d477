package gql

import (
	"fmt"
	"strings"
)

// Operation is a GraphQL operation: an opaque query document plus variables.
// Variables may hold *File values at any depth.
type Operation struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// File is a binary upload value used as a GraphQL variable.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// String identifies the file by metadata, never by content.
// Fingerprinting relies on this form.
func (f *File) String() string {
	if f == nil {
		return "[file <nil>]"
	}
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return fmt.Sprintf("[file name=%q type=%q size=%d]", f.Name, ct, len(f.Data))
}

// Location is a position in the query document reported by the server.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError is a single entry of a GraphQL response "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// HTTPError records a response whose status was outside the 2xx range.
type HTTPError struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
}

// Result is the stored outcome of one operation attempt.
//
// Only the fields that apply to what happened are set. A Result with Data
// and no error fields is a success.
type Result struct {
	Data          map[string]any `json:"data,omitempty"`
	GraphQLErrors []GraphQLError `json:"graphQLErrors,omitempty"`
	HTTPError     *HTTPError     `json:"httpError,omitempty"`
	ParseError    string         `json:"parseError,omitempty"`
	FetchError    string         `json:"fetchError,omitempty"`
}

// HasErrors reports whether any error field is set.
func (r Result) HasErrors() bool {
	return r.FetchError != "" || r.ParseError != "" || r.HTTPError != nil || len(r.GraphQLErrors) > 0
}

// OK reports whether the result carries data and no errors.
func (r Result) OK() bool {
	return r.Data != nil && !r.HasErrors()
}

// ErrorLines returns one human-readable line per error in the result,
// in the order fetch, http, parse, graphql.
func (r Result) ErrorLines() []string {
	var lines []string
	if r.FetchError != "" {
		lines = append(lines, "fetch error: "+r.FetchError)
	}
	if r.HTTPError != nil {
		lines = append(lines, fmt.Sprintf("http error: %d %s", r.HTTPError.Status, r.HTTPError.StatusText))
	}
	if r.ParseError != "" {
		lines = append(lines, "parse error: "+r.ParseError)
	}
	for _, e := range r.GraphQLErrors {
		line := "graphql error: " + e.Message
		if len(e.Locations) > 0 {
			locs := make([]string, len(e.Locations))
			for i, l := range e.Locations {
				locs[i] = fmt.Sprintf("%d:%d", l.Line, l.Column)
			}
			line += " (at " + strings.Join(locs, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return lines
}
