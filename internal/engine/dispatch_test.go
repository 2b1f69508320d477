package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/gqlcache/internal/gql"
	"github.com/roach88/gqlcache/internal/testutil"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   gql.Result
	}{
		{
			name:   "data",
			status: 200,
			body:   `{"data":{"user":{"id":"1","age":30}}}`,
			want: gql.Result{Data: map[string]any{
				"user": map[string]any{"id": "1", "age": 30.0},
			}},
		},
		{
			name:   "data and errors",
			status: 200,
			body:   `{"data":{"a":null},"errors":[{"message":"denied","locations":[{"line":1,"column":3}],"path":["a"]}]}`,
			want: gql.Result{
				Data: map[string]any{"a": nil},
				GraphQLErrors: []gql.GraphQLError{{
					Message:   "denied",
					Locations: []gql.Location{{Line: 1, Column: 3}},
					Path:      []any{"a"},
				}},
			},
		},
		{
			name:   "null data with errors",
			status: 200,
			body:   `{"data":null,"errors":[{"message":"bad"}]}`,
			want:   gql.Result{GraphQLErrors: []gql.GraphQLError{{Message: "bad"}}},
		},
		{
			name:   "errors with 400 status",
			status: 400,
			body:   `{"errors":[{"message":"syntax"}]}`,
			want: gql.Result{
				GraphQLErrors: []gql.GraphQLError{{Message: "syntax"}},
				HTTPError:     &gql.HTTPError{Status: 400, StatusText: "Bad Request"},
			},
		},
		{
			name:   "top-level array",
			status: 200,
			body:   `[{"bad":true}]`,
			want:   gql.Result{ParseError: MsgMalformedPayload},
		},
		{
			name:   "object without data or errors",
			status: 200,
			body:   `{"result":1}`,
			want:   gql.Result{ParseError: MsgMalformedPayload},
		},
		{
			name:   "errors not an array",
			status: 200,
			body:   `{"errors":"nope"}`,
			want:   gql.Result{ParseError: MsgMalformedPayload},
		},
		{
			name:   "data not an object",
			status: 200,
			body:   `{"data":[1]}`,
			want:   gql.Result{ParseError: MsgMalformedPayload},
		},
		{
			name:   "scalar data keeps errors",
			status: 200,
			body:   `{"data":"x","errors":[{"message":"bad"}]}`,
			want: gql.Result{
				ParseError:    MsgMalformedPayload,
				GraphQLErrors: []gql.GraphQLError{{Message: "bad"}},
			},
		},
		{
			name:   "empty body",
			status: 200,
			body:   ``,
			want:   gql.Result{ParseError: "unexpected end of JSON input"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(testutil.JSONResponse(tt.status, tt.body))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_NonJSONKeepsHTTPError(t *testing.T) {
	got := Decode(testutil.JSONResponse(502, "<html>Bad Gateway</html>"))

	assert.Equal(t, &gql.HTTPError{Status: 502, StatusText: "Bad Gateway"}, got.HTTPError)
	assert.Contains(t, got.ParseError, "invalid character")
	assert.Nil(t, got.Data)
}
