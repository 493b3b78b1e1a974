package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StaithValanthis/xsmom-bot/internal/domain"
)

func TestVersionStore_WriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewVersionStore(dir)
	require.NoError(t, err)

	v := domain.ConfigVersion{ID: "20260305-000000", Parameters: map[string]float64{"signal_power": 1.2}}
	require.NoError(t, store.Write(v))

	loaded, err := store.Load(v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, loaded.ID)
	assert.InDelta(t, 1.2, loaded.Parameters["signal_power"], 1e-9)
}

func TestVersionStore_ActiveEmptyWhenUnset(t *testing.T) {
	dir := t.TempDir()
	store, err := NewVersionStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "", store.Active())
}

func TestVersionStore_SetActiveThenActiveReturnsID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewVersionStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SetActive("abc123"))
	assert.Equal(t, "abc123", store.Active())
}

func TestVersionStore_RollbackToLatestPrior(t *testing.T) {
	dir := t.TempDir()
	store, err := NewVersionStore(dir)
	require.NoError(t, err)

	old := domain.ConfigVersion{ID: "old"}
	require.NoError(t, store.Write(old))
	require.NoError(t, store.SetActive(old.ID))

	newer := domain.ConfigVersion{ID: "newer", BackupOf: old.ID}
	require.NoError(t, store.Write(newer))
	require.NoError(t, store.SetActive(newer.ID))

	require.NoError(t, store.Rollback("latest-prior"))
	assert.Equal(t, "old", store.Active())
}

func TestVersionStore_RollbackUnknownIDFails(t *testing.T) {
	dir := t.TempDir()
	store, err := NewVersionStore(dir)
	require.NoError(t, err)
	assert.Error(t, store.Rollback("does-not-exist"))
}

func TestNewVersionID_IsTimestampFormatted(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "20260305-143000", NewVersionID(now))
}

func TestBadComboMemory_RecordsWorstDecileAndDetectsMatch(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/bad.json"
	m := LoadBadComboMemory(path)

	ranked := make([]Candidate, 10)
	for i := 0; i < 10; i++ {
		ranked[i] = Candidate{Params: map[string]float64{"x": float64(i)}, Score: float64(10 - i)}
	}
	require.NoError(t, m.Record(ranked))

	reloaded := LoadBadComboMemory(path)
	assert.True(t, reloaded.IsKnownBad(map[string]float64{"x": 9.0}))
	assert.False(t, reloaded.IsKnownBad(map[string]float64{"x": 0.0}))
}

func TestBadComboMemory_ToleratesMissingFile(t *testing.T) {
	m := LoadBadComboMemory("/nonexistent/path/bad.json")
	assert.False(t, m.IsKnownBad(map[string]float64{"x": 1}))
}
