package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtracker/internal/auth"
	"billtracker/internal/core"
	"billtracker/internal/storage"
)

const testSecret = "billctl-test-secret"

// writeConfig writes a YAML config with a temp sqlite database and no
// broker, returning its path and the database path.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "bills.db")
	body := fmt.Sprintf("sqlite_db_path: %s\namqp_url: \"\"\njwt_secret: %s\nlog_level: error\n", dbPath, testSecret)
	path := filepath.Join(dir, "billtracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	for _, key := range []string{"CONFIG_FILE", "SQLITE_DB_PATH", "AMQP_URL", "JWT_SECRET", "DB_DRIVER"} {
		t.Setenv(key, "")
	}
	return path, dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmdHelp(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"migrate", "generate", "token"} {
		assert.Contains(t, out, name)
	}
}

func TestMigrateCmd(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)

	out, err := run(t, "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied (sqlite)")
	assert.FileExists(t, dbPath)

	_, err = run(t, "--config", cfgPath, "migrate", "--driver", "oracle")
	assert.Error(t, err)
}

func TestGenerateCmdBackfillsPeriod(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	ctx := context.Background()

	store, err := storage.Open(ctx, storage.DriverSQLite, dbPath)
	require.NoError(t, err)
	p := core.Profile{UserID: "alice", Name: "Home", Address: core.Address{Street: "1 Main St", City: "Springfield", Country: "US"}}
	require.NoError(t, store.CreateProfile(ctx, &p))
	b := core.Bill{ProfileID: p.ID, UserID: "alice", Name: "Electricity"}
	require.NoError(t, store.CreateBill(ctx, &b))
	prior := core.BillInstance{BillID: b.ID, UserID: "alice", Period: "2024-11", Amount: core.Money{Cents: 5000}, DueDate: "2024-12-01"}
	_, err = store.InsertInstanceIfAbsent(ctx, &prior)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := run(t, "--config", cfgPath, "generate", "--period", "2024-12")
	require.NoError(t, err)
	assert.Contains(t, out, "period 2024-12: 1 bills, 1 created, 0 skipped, 0 failed")

	out, err = run(t, "--config", cfgPath, "generate", "--period", "December 2024")
	require.NoError(t, err)
	assert.Contains(t, out, "0 created, 1 skipped")

	store, err = storage.Open(ctx, storage.DriverSQLite, dbPath)
	require.NoError(t, err)
	defer store.Close()
	instances, err := store.ListInstancesByBill(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "2024-12", instances[0].Period)
	assert.Equal(t, int64(5000), instances[0].Amount.Cents)
	assert.Equal(t, "2025-01-01", instances[0].DueDate)
	assert.Equal(t, "Electricity's monthly instance for December 2024", instances[0].Description)
}

func TestGenerateCmdRejectsBadFlags(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	_, err := run(t, "--config", cfgPath, "generate", "--period", "someday")
	assert.Error(t, err)

	_, err = run(t, "--config", cfgPath, "generate", "--due-month", "2025-01")
	assert.Error(t, err)
}

func TestTokenCmd(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "--config", cfgPath, "token", "--user", "alice")
	require.NoError(t, err)

	claims, err := auth.NewJWTManager(testSecret, time.Hour).Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = run(t, "--config", cfgPath, "token")
	assert.Error(t, err)
}
