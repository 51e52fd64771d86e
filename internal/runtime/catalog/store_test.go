package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stelliberty/enginectl/internal/runtime/envelope"
	"github.com/stelliberty/enginectl/internal/runtime/logging"
	"github.com/stelliberty/enginectl/internal/runtime/telemetry"
)

type dirPaths struct{ dir string }

func (d dirPaths) CatalogPath() string { return filepath.Join(d.dir, "catalog.json") }
func (d dirPaths) SubscriptionContentPath(id string) string {
	return filepath.Join(d.dir, "sub-"+id+".yaml")
}
func (d dirPaths) OverrideContentPath(id string) string {
	return filepath.Join(d.dir, "ov-"+id+".yaml")
}

func newTestStore(t *testing.T) (*Store, dirPaths) {
	t.Helper()
	paths := dirPaths{dir: t.TempDir()}
	store, err := Open(paths, logging.Nop())
	require.NoError(t, err)
	return store, paths
}

func TestOpenEmptyDirectory(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Empty(t, store.Subscriptions())
	assert.Empty(t, store.Overrides())
	assert.Equal(t, telemetry.LevelInfo, store.LogLevel())
}

func TestSubscriptionRoundTrip(t *testing.T) {
	store, paths := newTestStore(t)

	sub := Subscription{
		ID:          "s1",
		Name:        "primary",
		SourceURL:   "https://example.com/sub",
		OverrideIDs: []string{"ov-c", "ov-a", "ov-b"},
	}
	require.NoError(t, store.SaveSubscription(sub, "proxies:\n  - a\n"))

	reopened, err := Open(paths, logging.Nop())
	require.NoError(t, err)
	got, ok := reopened.Subscription("s1")
	require.True(t, ok)
	assert.Equal(t, "primary", got.Name)
	assert.Equal(t, []string{"ov-c", "ov-a", "ov-b"}, got.OverrideIDs,
		"override id order is significant and must survive load/save")

	content, err := reopened.SubscriptionContent("s1")
	require.NoError(t, err)
	assert.Equal(t, "proxies:\n  - a\n", content)
}

func TestAtomicSaveSurvivesCrashBeforeRename(t *testing.T) {
	store, paths := newTestStore(t)
	require.NoError(t, store.SaveSubscription(Subscription{ID: "s1", Name: "kept"}, "proxies: []\n"))

	// A crash between temp-write and rename leaves a stray .tmp file; the
	// primary from the last completed save must still load.
	require.NoError(t, os.WriteFile(paths.CatalogPath()+".tmp", []byte("{half-writ"), 0o600))

	reopened, err := Open(paths, logging.Nop())
	require.NoError(t, err)
	_, ok := reopened.Subscription("s1")
	assert.True(t, ok)
}

func TestSelfHealFromBackup(t *testing.T) {
	store, paths := newTestStore(t)
	require.NoError(t, store.SaveSubscription(Subscription{ID: "s1", Name: "first"}, "proxies: []\n"))
	// Second save rotates the first state into the backup.
	require.NoError(t, store.SaveSubscription(Subscription{ID: "s1", Name: "second"}, "proxies: []\n"))

	require.NoError(t, os.WriteFile(paths.CatalogPath(), []byte("corrupt{{{"), 0o600))

	reopened, err := Open(paths, logging.Nop())
	require.NoError(t, err)
	got, ok := reopened.Subscription("s1")
	require.True(t, ok)
	assert.Equal(t, "first", got.Name, "backup holds the prior good state")

	// The heal rewrites the primary, so a third open needs no backup.
	require.NoError(t, os.Remove(paths.CatalogPath()+backupSuffix))
	again, err := Open(paths, logging.Nop())
	require.NoError(t, err)
	_, ok = again.Subscription("s1")
	assert.True(t, ok)
}

func TestCorruptPrimaryAndBackupStartsEmpty(t *testing.T) {
	paths := dirPaths{dir: t.TempDir()}
	require.NoError(t, os.WriteFile(paths.CatalogPath(), []byte("junk"), 0o600))
	require.NoError(t, os.WriteFile(paths.CatalogPath()+backupSuffix, []byte("junk too"), 0o600))

	store, err := Open(paths, logging.Nop())
	require.NoError(t, err, "total corruption is a data-loss event, not a startup failure")
	assert.Empty(t, store.Subscriptions())
}

func TestPruneDropsEntriesWithMissingContent(t *testing.T) {
	store, paths := newTestStore(t)
	require.NoError(t, store.SaveSubscription(Subscription{ID: "keep"}, "proxies: []\n"))
	require.NoError(t, store.SaveSubscription(Subscription{ID: "lost"}, "proxies: []\n"))
	require.NoError(t, store.SaveOverride(Override{ID: "ov-lost", Name: "x"}, "dns: {}\n"))

	require.NoError(t, os.Remove(paths.SubscriptionContentPath("lost")))
	require.NoError(t, os.Remove(paths.OverrideContentPath("ov-lost")))

	reopened, err := Open(paths, logging.Nop())
	require.NoError(t, err)
	_, ok := reopened.Subscription("keep")
	assert.True(t, ok)
	_, ok = reopened.Subscription("lost")
	assert.False(t, ok)
	assert.Empty(t, reopened.Overrides())
}

func TestResolveOverride(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.SaveOverride(Override{ID: "ov1", Name: "dns tweaks"}, "dns:\n  enable: true\n"))

	patch, err := store.ResolveOverride("ov1")
	require.NoError(t, err)
	assert.Equal(t, "dns tweaks", patch.Name)
	assert.Equal(t, FormatDeclarative, patch.Format, "format defaults to declarative")
	assert.Equal(t, "dns:\n  enable: true\n", patch.Content)

	_, err = store.ResolveOverride("never-existed")
	assert.Error(t, err)
}

func TestDeleteOverrideLeavesDanglingReference(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.SaveOverride(Override{ID: "ov1", Name: "x"}, "dns: {}\n"))
	require.NoError(t, store.SaveSubscription(Subscription{ID: "s1", OverrideIDs: []string{"ov1"}}, "proxies: []\n"))

	require.NoError(t, store.DeleteOverride("ov1"))

	sub, ok := store.Subscription("s1")
	require.True(t, ok)
	assert.Equal(t, []string{"ov1"}, sub.OverrideIDs, "weak references stay; resolution skips them")
	_, err := store.ResolveOverride("ov1")
	assert.Error(t, err)
}

func TestSettingsPersist(t *testing.T) {
	store, paths := newTestStore(t)
	require.NoError(t, store.SetLogLevel(telemetry.LevelWarning))
	require.NoError(t, store.SaveSubscription(Subscription{ID: "s1"}, "proxies: []\n"))
	require.NoError(t, store.SetActiveSubscription("s1"))

	reopened, err := Open(paths, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, telemetry.LevelWarning, reopened.LogLevel())
	assert.Equal(t, "s1", reopened.ActiveSubscription())

	assert.Error(t, store.SetLogLevel(telemetry.Level("chatty")))
}

func TestTouchSubscription(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.SaveSubscription(Subscription{ID: "s1"}, "proxies: []\n"))

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	usage := &envelope.UsageInfo{Upload: 10, Download: 200, Total: 1 << 30}
	require.NoError(t, store.TouchSubscription("s1", usage, at))

	sub, _ := store.Subscription("s1")
	assert.Equal(t, at, sub.LastUpdated)
	require.NotNil(t, sub.Usage)
	assert.Equal(t, uint64(200), sub.Usage.Download)

	assert.Error(t, store.TouchSubscription("ghost", nil, at))
}

func TestDeleteSubscriptionClearsActive(t *testing.T) {
	store, paths := newTestStore(t)
	require.NoError(t, store.SaveSubscription(Subscription{ID: "s1"}, "proxies: []\n"))
	require.NoError(t, store.SetActiveSubscription("s1"))

	require.NoError(t, store.DeleteSubscription("s1"))
	assert.Empty(t, store.ActiveSubscription())
	_, err := os.Stat(paths.SubscriptionContentPath("s1"))
	assert.True(t, os.IsNotExist(err))
}
