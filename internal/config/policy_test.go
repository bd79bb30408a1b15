package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePolicies(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		policies, err := ParsePolicies([]byte(`
policies:
  Post_Creation:
    max_actions: 2
    window: 90s
    key: posts
`))
		require.NoError(t, err)
		require.Equal(t, PolicyConfig{MaxActions: 2, Window: 90 * time.Second, Key: "posts"}, policies["post_creation"])
	})

	t.Run("InvalidWindow", func(t *testing.T) {
		_, err := ParsePolicies([]byte(`
policies:
  post_creation:
    window: soon
`))
		require.ErrorContains(t, err, "invalid window")
	})

	t.Run("NegativeWindow", func(t *testing.T) {
		_, err := ParsePolicies([]byte(`
policies:
  post_creation:
    window: -1m
`))
		require.Error(t, err)
	})

	t.Run("NegativeMax", func(t *testing.T) {
		_, err := ParsePolicies([]byte(`
policies:
  post_creation:
    max_actions: -3
`))
		require.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := ParsePolicies([]byte("policies: ["))
		require.Error(t, err)
	})
}

func TestLoadPolicyFileMissing(t *testing.T) {
	_, err := LoadPolicyFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read policy file")
}
