package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCommentsLineAndBlock(t *testing.T) {
	in := []byte("{\n  // hi\n  \"a\": 1, /* block */ \"b\": 2\n}\n")
	out, err := StripComments(in)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "//")
	assert.NotContains(t, string(out), "/*")
	assert.Contains(t, string(out), `"a": 1`)
	assert.Contains(t, string(out), `"b": 2`)
}

func TestStripCommentsBacktickMultilineString(t *testing.T) {
	in := []byte("{ \"description\": `line1\nline2` }")
	out, err := StripComments(in)
	require.NoError(t, err)
	assert.Equal(t, `{ "description": "line1\nline2" }`, string(out))
}

func TestStripCommentsUnclosedBlockComment(t *testing.T) {
	_, err := StripComments([]byte("/* never closed"))
	assert.Error(t, err)
}

func TestStripCommentsUnclosedString(t *testing.T) {
	_, err := StripComments([]byte(`{"a": "never closed`))
	assert.Error(t, err)
}

func TestStripCommentsLeavesStrictJSONByteForByteModuloComments(t *testing.T) {
	in := []byte(`{"a":1,"b":"text // not a comment"}`)
	out, err := StripComments(in)
	require.NoError(t, err)
	assert.Equal(t, string(in), string(out))
}

func TestStripCommentsIdempotent(t *testing.T) {
	in := []byte("{\n  // hi\n  \"a\": 1\n}\n")
	once, err := StripComments(in)
	require.NoError(t, err)
	twice, err := StripComments(once)
	require.NoError(t, err)
	assert.Equal(t, string(once), string(twice))
}

func TestLooksCommentTolerant(t *testing.T) {
	assert.True(t, LooksCommentTolerant("server.jsonmc", []byte(`{}`)))
	assert.True(t, LooksCommentTolerant("server.json", []byte("/* x */\n{}")))
	assert.True(t, LooksCommentTolerant("server.json", []byte("{} // trailing")))
	assert.False(t, LooksCommentTolerant("server.json", []byte(`{"a":1}`)))
}
