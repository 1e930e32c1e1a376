package matching

import "testing"

import "github.com/stretchr/testify/assert"

func TestExtractVariables(t *testing.T) {
	vars, ok := ExtractVariables("/users/{id}", "/users/42")
	assert.True(t, ok)
	assert.Equal(t, "42", vars["id"])

	_, ok = ExtractVariables("/users/{id}", "/users/42/extra")
	assert.False(t, ok)

	vars, ok = ExtractVariables("/a/{x}/b/{y}", "/a/1/b/2")
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"x": "1", "y": "2"}, vars)
}

func TestMatchPrefix(t *testing.T) {
	cases := []struct {
		glob, path string
		wantOK     bool
		wantLen    int
	}{
		{"/**", "/anything/at/all", true, len("/anything/at/all")},
		{"/api/*", "/api/foo", true, len("/api/foo")},
		{"/api/*", "/api/foo/bar", true, len("/api/foo")},
		{"/api/**", "/api/foo/bar", true, len("/api/foo/bar")},
		{"/a?c", "/abc", true, len("/abc")},
		{"/a?c", "/a/c", false, 0},
	}
	for _, c := range cases {
		gotLen, gotOK := MatchPrefix(c.glob, c.path)
		assert.Equal(t, c.wantOK, gotOK, "glob=%s path=%s", c.glob, c.path)
		if c.wantOK {
			assert.Equal(t, c.wantLen, gotLen, "glob=%s path=%s", c.glob, c.path)
		}
	}
}

func TestSelectLongestTieBreaksByInsertionOrder(t *testing.T) {
	winner, ok := SelectLongest([]Candidate{
		{Index: 0, MatchedLen: 5},
		{Index: 1, MatchedLen: 5},
		{Index: 2, MatchedLen: 3},
	})
	assert.True(t, ok)
	assert.Equal(t, 0, winner)
}
