// Package fingerprint computes the cache key of an operation from its built
// request parameters.
//
// A fingerprint is an xxhash64 digest, base36 encoded, over a
// domain-separated JSON serialization of the parameters:
//
//	xxhash64(domain + 0x00 + json)
//
// Header keys serialize sorted, so header insertion order never matters.
// Multipart bodies are replaced by a signature that concatenates
// name + value for every field in order; file values contribute their
// metadata string, not their bytes. Field order therefore changes the
// fingerprint.
//
// This is not a security boundary. Collisions are merely improbable.
package fingerprint

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/gqlcache/internal/fetchopts"
	"github.com/roach88/gqlcache/internal/gql"
)

// Domain prefixes every hashed payload. The version suffix allows a future
// algorithm change without silently reusing old hydration payloads.
const Domain = "gqlcache/fingerprint/v1"

// Creator derives a cache key from request parameters.
type Creator func(fetchopts.Params) string

// Default is the Creator used when callers supply none.
var Default Creator = Hash

// hashInput is the serialized shape of Params.
type hashInput struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Credentials string            `json:"credentials,omitempty"`
	Headers     map[string]string `json:"headers"`
	BodyKind    string            `json:"bodyKind"`
	Body        string            `json:"body"`
}

// Hash returns the fingerprint of params.
func Hash(params fetchopts.Params) string {
	input := hashInput{
		URL:         params.URL,
		Method:      params.Method,
		Credentials: params.Credentials,
		Headers:     params.Headers,
	}

	switch body := params.Body.(type) {
	case fetchopts.JSONBody:
		input.BodyKind = "json"
		input.Body = string(body)
	case *fetchopts.MultipartForm:
		input.BodyKind = "multipart"
		input.Body = FormSignature(body)
	case nil:
		input.BodyKind = "none"
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Only strings and string maps: encoding cannot fail.
	_ = enc.Encode(input)

	return hashWithDomain(Domain, buf.Bytes())
}

// FormSignature folds every field of form into one string, in order.
func FormSignature(form *fetchopts.MultipartForm) string {
	var sb strings.Builder
	for _, field := range form.Fields() {
		sb.WriteString(field.Name)
		sb.WriteString(fieldString(field))
	}
	return sb.String()
}

func fieldString(field fetchopts.Field) string {
	if field.File != nil {
		return field.File.String()
	}
	return field.Value
}

// ForOperation builds the parameters of op and applies creator, falling back
// to Default when creator is nil.
func ForOperation(op gql.Operation, override fetchopts.Override, creator Creator) (fetchopts.Params, string, error) {
	params, err := fetchopts.Build(op, override)
	if err != nil {
		return fetchopts.Params{}, "", err
	}
	if creator == nil {
		creator = Default
	}
	return params, creator(params), nil
}

// hashWithDomain computes xxhash64 with domain separation.
// The NUL separator keeps domain and data boundaries unambiguous.
func hashWithDomain(domain string, data []byte) string {
	d := xxhash.New()
	_, _ = d.WriteString(domain)
	_, _ = d.Write([]byte{0x00})
	_, _ = d.Write(data)
	return strconv.FormatUint(d.Sum64(), 36)
}
