package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/tabgruppen/internal/ai"
	"github.com/lotas/tabgruppen/internal/storage"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestDefaultsWhenEmpty(t *testing.T) {
	s, err := testStore(t).Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
	assert.Equal(t, 15*time.Second, s.Delays.Fallback())
	assert.Equal(t, 3*time.Second, s.Delays.Regroup())
	assert.Equal(t, 100*time.Millisecond, s.Delays.Retry())
	assert.Equal(t, time.Second, s.Delays.Backoff())
}

func TestSetValues(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "maxTabsPerGroup", "6"))
	require.NoError(t, store.Set(ctx, "aiProvider", "openai"))
	require.NoError(t, store.Set(ctx, "excludePinnedTabs", "true"))
	require.NoError(t, store.Set(ctx, "customGroupingInstructions", "42"))
	require.NoError(t, store.Set(ctx, "delays.regroupDelay", "500"))

	s, err := store.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, s.MaxTabsPerGroup)
	assert.Equal(t, "openai", s.AIProvider)
	assert.True(t, s.ExcludePinnedTabs)
	assert.Equal(t, "42", s.CustomGroupingInstructions)
	assert.Equal(t, 500, s.Delays.RegroupDelay)
	assert.Equal(t, 15000, s.Delays.AutoGroupFallback, "other delays keep their defaults")
}

func TestReset(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "maxTabsPerGroup", "3"))
	require.NoError(t, store.Reset(ctx, "maxTabsPerGroup"))
	s, err := store.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, s.MaxTabsPerGroup)

	assert.Error(t, store.Reset(ctx, "noSuchKey"))
}

func TestSetRejects(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	assert.Error(t, store.Set(ctx, "noSuchKey", "1"))
	assert.Error(t, store.Set(ctx, "maxTabsPerGroup", "many"))
	assert.Error(t, store.Set(ctx, "delays.nope", "1"))
	assert.Error(t, store.Set(ctx, "delays.regroupDelay", `"soon"`))

	s, err := store.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Delays, s.Delays)
}

func TestSetSingleDelayKeepsOthers(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "delays.regroupDelay", "250"))

	s, err := store.Settings(ctx)
	require.NoError(t, err)
	want := Defaults().Delays
	want.RegroupDelay = 250
	assert.Equal(t, want, s.Delays)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "delays")
	assert.Contains(t, keys, "maxTabsPerGroup")
	assert.NotContains(t, keys, "regroupDelay")
}

func TestImportYAML(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
aiProvider: ollama
modelName: qwen2.5
closeOtherGroups: false
delays:
  autoGroupFallback: 8000
`), 0o644))

	n, err := Import(ctx, store, path)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	s, err := store.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ollama", s.AIProvider)
	assert.Equal(t, "qwen2.5", s.ModelName)
	assert.False(t, s.CloseOtherGroups)
	assert.Equal(t, 8000, s.Delays.AutoGroupFallback)
	assert.Equal(t, 3000, s.Delays.RegroupDelay)

	n, err = Import(ctx, store, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestEncodeMasksAPIKey(t *testing.T) {
	s := Defaults()
	s.APIKey = "sk-abcdefgh1234"
	var b strings.Builder
	require.NoError(t, Encode(&b, s))
	assert.Contains(t, b.String(), "****1234")
	assert.NotContains(t, b.String(), "abcdefgh")
	assert.Contains(t, b.String(), "maxTabsPerGroup: 10")
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	want := Defaults()
	want.MaxTabsPerGroup = 4
	require.NoError(t, WriteFile(path, want))

	store := testStore(t)
	_, err := Import(context.Background(), store, path)
	require.NoError(t, err)
	got, err := store.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAIConfigEnvOverrides(t *testing.T) {
	s := Defaults()
	s.AIProvider = ai.ProviderOllama
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvModel, "llama3.1")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvOllama, "http://gpu-box:11434")

	cfg := AIConfig(s)
	assert.Equal(t, ai.ProviderOllama, cfg.Provider)
	assert.Equal(t, "llama3.1", cfg.Model)
	assert.Equal(t, "http://gpu-box:11434", cfg.BaseURL)

	t.Setenv(EnvProvider, ai.ProviderOpenAI)
	cfg = AIConfig(s)
	assert.Empty(t, cfg.BaseURL, "OLLAMA_HOST only applies to ollama")
}
