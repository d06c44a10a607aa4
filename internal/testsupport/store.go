package testsupport

import (
	"testing"

	"reelforge/internal/config"
	"reelforge/internal/history"
)

// MustOpenHistory opens the ledger at the config's history path and closes
// it when the test ends.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
