package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

// searchResultsSchema is the spec.md §6 --json output contract:
// [{file, line, score, text}, ...].
const searchResultsSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["file", "line", "score", "text"],
		"properties": {
			"file":  {"type": "string"},
			"line":  {"type": "integer"},
			"score": {"type": "number"},
			"text":  {"type": "string"}
		}
	}
}`

func TestSearchCmd_HasExpectedFlags(t *testing.T) {
	root := NewRootCmd()
	searchCmd, _, err := root.Find([]string{"search"})
	require.NoError(t, err)

	assert.NotNil(t, searchCmd.Flags().Lookup("top"))
	assert.NotNil(t, searchCmd.Flags().Lookup("json"))
}

func TestSearchCmd_EmptyStoreReturnsEmptyJSONArray(t *testing.T) {
	chdirTemp(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"search", "anything", "--json"})

	err := root.Execute()
	require.NoError(t, err)

	var hits []searchHit
	require.NoError(t, json.Unmarshal(buf.Bytes(), &hits))
	assert.Empty(t, hits)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(searchResultsSchema),
		gojsonschema.NewBytesLoader(buf.Bytes()),
	)
	require.NoError(t, err)
	assert.True(t, result.Valid(), "search --json output violates the documented schema: %v", result.Errors())
}

func TestSearchCmd_EmptyStoreTextModePrintsNoResults(t *testing.T) {
	chdirTemp(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"search", "anything"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "no results")
}

func TestSnippetTruncatesLongText(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	got := snippet(string(long))
	assert.Len(t, got, 203)
	assert.True(t, len(got) < len(long))
}

func TestSnippetLeavesShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "short text", snippet("short text"))
}
