package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rallynav/pkg/config"
	"rallynav/pkg/db"
	"rallynav/pkg/model"
	"rallynav/pkg/store"
)

func fixLine(name string) string {
	b := []byte(strings.Repeat(" ", 100))
	copy(b, "FIX1")
	copy(b[4:], name)
	copy(b[34:], "CALIFORNIA")
	copy(b[66:], "37-42-00.000N")
	copy(b[80:], "121-36-00.000W")
	return string(b)
}

func setup(t *testing.T) (*db.DB, *store.SQLiteStore, *config.Config) {
	t.Helper()
	tempDir := t.TempDir()
	d, err := db.Init(filepath.Join(tempDir, "maint_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	cfg := config.DefaultConfig()
	cfg.Import.NASRDir = filepath.Join(tempDir, "nasr")
	cfg.Import.States = []string{"CA"}
	require.NoError(t, os.MkdirAll(cfg.Import.NASRDir, 0o755))
	return d, store.NewSQLiteStore(d), cfg
}

func TestMaintenance(t *testing.T) {
	d, s, cfg := setup(t)
	ctx := context.Background()

	fixPath := filepath.Join(cfg.Import.NASRDir, "FIX.txt")
	require.NoError(t, os.WriteFile(fixPath, []byte(fixLine("ALTAM")+"\n"), 0o644))

	now := time.Now().UTC()
	_, err := d.Exec("INSERT INTO flight_logs (id, name, date_flown) VALUES (?, ?, ?), (?, ?, ?)",
		"old", "old", now.Add(-400*24*time.Hour), "new", "new", now.Add(-24*time.Hour))
	require.NoError(t, err)

	require.NoError(t, Run(ctx, s, d, cfg))

	// Seeded
	users, err := s.ListUserWaypoints(ctx)
	require.NoError(t, err)
	assert.Len(t, users, len(cfg.Waypoints.UserSeed))

	// Imported
	w, err := s.GetFAAWaypoint(ctx, "ALTAM")
	require.NoError(t, err)
	require.NotNil(t, w)
	_, found := s.GetState(ctx, nasrStateKey)
	assert.True(t, found)

	// Pruned
	var n int
	require.NoError(t, d.QueryRow("SELECT count(*) FROM flight_logs").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMaintenance_SeedOnlyOnce(t *testing.T) {
	d, s, cfg := setup(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, s, d, cfg))
	require.NoError(t, s.DeleteUserWaypoint(ctx, "OILCAMP"))

	require.NoError(t, Run(ctx, s, d, cfg))
	w, err := s.GetUserWaypoint(ctx, "OILCAMP")
	require.NoError(t, err)
	assert.Nil(t, w, "deleted seed waypoints stay deleted")
}

func TestMaintenance_NASRSkippedWhenUnchanged(t *testing.T) {
	d, s, cfg := setup(t)
	ctx := context.Background()

	fixPath := filepath.Join(cfg.Import.NASRDir, "FIX.txt")
	require.NoError(t, os.WriteFile(fixPath, []byte(fixLine("ALTAM")+"\n"), 0o644))
	require.NoError(t, Run(ctx, s, d, cfg))

	// Remove the row; an unchanged file must not re-import it
	_, err := d.Exec("DELETE FROM faa_waypoints")
	require.NoError(t, err)
	require.NoError(t, Run(ctx, s, d, cfg))
	count, err := s.CountFAAWaypoints(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Touching the file triggers a new import
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(fixPath, later, later))
	require.NoError(t, Run(ctx, s, d, cfg))
	count, err = s.CountFAAWaypoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportNASR_Forced(t *testing.T) {
	_, s, cfg := setup(t)
	ctx := context.Background()

	assert.Error(t, ImportNASR(ctx, s, cfg.Import.NASRDir, cfg.Import.States), "empty directory")

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Import.NASRDir, "FIX.txt"), []byte(fixLine("BOBBY")+"\n"), 0o644))
	require.NoError(t, ImportNASR(ctx, s, cfg.Import.NASRDir, cfg.Import.States))
	require.NoError(t, ImportNASR(ctx, s, cfg.Import.NASRDir, cfg.Import.States))

	w, err := s.GetFAAWaypoint(ctx, "BOBBY")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, model.WaypointTypeIntersection, w.Type)
}
