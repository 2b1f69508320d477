package fingerprint

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlcache/internal/fetchopts"
	"github.com/roach88/gqlcache/internal/gql"
)

var base36 = regexp.MustCompile(`^[0-9a-z]+$`)

func buildParams(t *testing.T, op gql.Operation) fetchopts.Params {
	t.Helper()
	p, err := fetchopts.Build(op, nil)
	require.NoError(t, err)
	return p
}

func TestHash_Deterministic(t *testing.T) {
	params := buildParams(t, gql.Operation{Query: "{ echo }"})

	h1 := Hash(params)
	h2 := Hash(params)

	assert.Equal(t, h1, h2, "hash must be deterministic")
	assert.Regexp(t, base36, h1)
}

func TestHash_ChangesWithInput(t *testing.T) {
	base := buildParams(t, gql.Operation{Query: "{ a(x: 1) }"})
	h := Hash(base)

	otherBody := buildParams(t, gql.Operation{Query: "{ a(x: 2) }"})
	assert.NotEqual(t, h, Hash(otherBody), "different body should change the hash")

	otherURL := base
	otherURL.URL = "/other"
	assert.NotEqual(t, h, Hash(otherURL), "different url should change the hash")

	otherHeaders := base
	otherHeaders.Headers = base.Headers.Clone()
	otherHeaders.Headers["Authorization"] = "Bearer x"
	assert.NotEqual(t, h, Hash(otherHeaders), "different headers should change the hash")

	otherCredentials := base
	otherCredentials.Credentials = "include"
	assert.NotEqual(t, h, Hash(otherCredentials))
}

func TestHash_HeaderInsertionOrderIrrelevant(t *testing.T) {
	a := fetchopts.Params{URL: "/graphql", Method: "POST", Headers: fetchopts.Header{}, Body: fetchopts.JSONBody("{}")}
	a.Headers["X-One"] = "1"
	a.Headers["X-Two"] = "2"

	b := fetchopts.Params{URL: "/graphql", Method: "POST", Headers: fetchopts.Header{}, Body: fetchopts.JSONBody("{}")}
	b.Headers["X-Two"] = "2"
	b.Headers["X-One"] = "1"

	assert.Equal(t, Hash(a), Hash(b))
}

func TestHash_MultipartFieldOrderMatters(t *testing.T) {
	ab := &fetchopts.MultipartForm{}
	ab.Append("a", "1")
	ab.Append("b", "2")

	ba := &fetchopts.MultipartForm{}
	ba.Append("b", "2")
	ba.Append("a", "1")

	pAB := fetchopts.Params{URL: "/graphql", Method: "POST", Headers: fetchopts.Header{}, Body: ab}
	pBA := fetchopts.Params{URL: "/graphql", Method: "POST", Headers: fetchopts.Header{}, Body: ba}

	assert.NotEqual(t, Hash(pAB), Hash(pBA))
	assert.Equal(t, "a1b2", FormSignature(ab))
}

func TestHash_FilesHashByMetadata(t *testing.T) {
	query := "mutation ($f: Upload!) { up(f: $f) }"
	same1 := buildParams(t, gql.Operation{Query: query, Variables: map[string]any{
		"f": &gql.File{Name: "a.txt", Data: []byte("one")},
	}})
	same2 := buildParams(t, gql.Operation{Query: query, Variables: map[string]any{
		"f": &gql.File{Name: "a.txt", Data: []byte("two")},
	}})
	renamed := buildParams(t, gql.Operation{Query: query, Variables: map[string]any{
		"f": &gql.File{Name: "b.txt", Data: []byte("one")},
	}})

	assert.Equal(t, Hash(same1), Hash(same2))
	assert.NotEqual(t, Hash(same1), Hash(renamed))
}

func TestHash_JSONAndMultipartBodiesDiffer(t *testing.T) {
	form := &fetchopts.MultipartForm{}
	form.Append("x", "")

	jsonParams := fetchopts.Params{URL: "/graphql", Method: "POST", Body: fetchopts.JSONBody("x")}
	formParams := fetchopts.Params{URL: "/graphql", Method: "POST", Body: form}

	assert.NotEqual(t, Hash(jsonParams), Hash(formParams))
}

func TestForOperation(t *testing.T) {
	op := gql.Operation{Query: "{ echo }"}

	params, fp, err := ForOperation(op, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Hash(params), fp)

	_, custom, err := ForOperation(op, nil, func(fetchopts.Params) string { return "fixed" })
	require.NoError(t, err)
	assert.Equal(t, "fixed", custom)

	_, overridden, err := ForOperation(op, func(p *fetchopts.Params) { p.URL = "/v2" }, nil)
	require.NoError(t, err)
	assert.NotEqual(t, fp, overridden)
}
