package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlcache/internal/gql"
)

func TestMarshalResult_NoHTMLEscapingNoNewline(t *testing.T) {
	text, err := marshalResult(gql.Result{Data: map[string]any{"html": "<b>&</b>"}})
	require.NoError(t, err)

	assert.Equal(t, `{"data":{"html":"<b>&</b>"}}`, text)
}

func TestUnmarshalResult(t *testing.T) {
	r, err := unmarshalResult(`{"fetchError":"offline"}`)
	require.NoError(t, err)
	assert.Equal(t, gql.Result{FetchError: "offline"}, r)

	_, err = unmarshalResult(`{`)
	assert.ErrorContains(t, err, "unmarshal result")
}
