package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandVariablesFound(t *testing.T) {
	env := MapEnvironment{"NAME": "world"}
	out, err := ExpandVariables([]byte("hello @{NAME}"), env)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
}

func TestExpandVariablesDefault(t *testing.T) {
	env := MapEnvironment{}
	out, err := ExpandVariables([]byte("hello @{NAME:-stranger}"), env)
	require.NoError(t, err)
	assert.Equal(t, "hello stranger", string(out))
}

func TestExpandVariablesMissingNoDefault(t *testing.T) {
	env := MapEnvironment{}
	_, err := ExpandVariables([]byte("hello @{NAME}"), env)
	assert.Error(t, err)
}

func TestExpandVariablesTotalityLeavesNoMarkers(t *testing.T) {
	env := MapEnvironment{"A": "1", "B": "2"}
	out, err := ExpandVariables([]byte("@{A}-@{B}-@{C:-3}"), env)
	require.NoError(t, err)
	assert.Equal(t, "1-2-3", string(out))
	assert.NotContains(t, string(out), "@{")
}
