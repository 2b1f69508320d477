package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlcache/internal/store"
)

// renderedDB renders the profile page into a fresh database and returns
// its path and the snapshot id.
func renderedDB(t *testing.T) (string, string) {
	t.Helper()
	api := newAPIServer(t)
	db := filepath.Join(t.TempDir(), "snapshots.db")

	out, _, err := execute(t, "render", profilePage, "--endpoint", api.URL, "--db", db, "--label", "/profile", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data RenderOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Data.Snapshot)
	return db, resp.Data.Snapshot.ID
}

func TestSnapshotList(t *testing.T) {
	db, id := renderedDB(t)

	out, _, err := execute(t, "snapshot", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "/profile")

	out, _, err = execute(t, "snapshot", "list", "--db", db, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data []store.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, id, resp.Data[0].ID)
}

func TestSnapshotList_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	out, _, err := execute(t, "snapshot", "list", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No snapshots.\n", out)
}

func TestSnapshotShow(t *testing.T) {
	db, id := renderedDB(t)

	out, _, err := execute(t, "snapshot", "show", id, "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "snapshot "+id+" (/profile), 3 entries")
	assert.Contains(t, out, "  ok\n")
	assert.Contains(t, out, "graphql error: boom (at 1:3)")
}

func TestSnapshotDelete(t *testing.T) {
	db, id := renderedDB(t)

	out, _, err := execute(t, "snapshot", "delete", id, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "Deleted snapshot "+id+"\n", out)

	_, _, err = execute(t, "snapshot", "show", id, "--db", db)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSnapshot_NoDatabase(t *testing.T) {
	_, _, err := execute(t, "snapshot", "list")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database")
}
