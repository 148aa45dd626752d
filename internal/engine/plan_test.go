package engine

import (
	"testing"
	"time"

	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(names ...string) migration.Identifiers {
	result := make(migration.Identifiers, 0, len(names))
	for _, n := range names {
		result = append(result, migration.ParseIdentifier(n))
	}
	return result
}

func applied(names ...string) migration.Entries {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	result := make(migration.Entries, 0, len(names))
	for i, n := range names {
		result = append(result, migration.Entry{
			Version:    n,
			Status:     migration.StatusSuccess,
			MigratedAt: start.Add(time.Duration(i) * time.Second),
		})
	}
	return result
}

func failedAt(entries migration.Entries, version string) migration.Entries {
	for i := range entries {
		if entries[i].Version == version {
			entries[i].Status = "boom"
		}
	}
	return entries
}

func Test_PlanUp(t *testing.T) {
	catalog := ids("2.0.0", "cleanup", "1.0.0", "1.1.0", "1.1.0-rc.1")

	tt := []struct {
		name    string
		entries migration.Entries
		target  string
		plan    []string
		err     error
	}{
		{name: "all from empty ledger", target: "2.0.0", plan: []string{"1.0.0", "1.1.0-rc.1", "1.1.0", "2.0.0"}},
		{name: "empty target means latest", target: "", plan: []string{"1.0.0", "1.1.0-rc.1", "1.1.0", "2.0.0"}},
		{name: "pre-release sorts before release", entries: applied("1.0.0"), target: "1.1.0", plan: []string{"1.1.0-rc.1", "1.1.0"}},
		{name: "named entries do not move current", entries: applied("cleanup"), target: "1.0.0", plan: []string{"1.0.0"}},
		{name: "already applied", entries: applied("1.0.0", "1.1.0-rc.1", "1.1.0", "2.0.0"), target: "2.0.0", err: migration.ErrNoChangesRequired},
		{name: "applied below current", entries: applied("1.0.0", "1.1.0"), target: "1.0.0", err: migration.ErrNoChangesRequired},
		{name: "failed target", entries: failedAt(applied("1.0.0", "1.1.0"), "1.1.0"), target: "1.1.0", err: migration.ErrTargetFailed},
		{name: "unknown target", target: "3.0.0", err: migration.ErrTargetNotFound},
		{name: "named target", target: "cleanup", err: migration.ErrTargetNotFound},
		{name: "skipped version below current", entries: applied("1.0.0", "1.1.0"), target: "1.1.0-rc.1", err: migration.ErrTargetNotFound},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			plan, err := planUp(catalog, tc.entries, tc.target)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "got %v", err)
				assert.Empty(t, plan)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.plan, plan.Names())
		})
	}
}

func Test_PlanDown(t *testing.T) {
	tt := []struct {
		name    string
		entries migration.Entries
		target  string
		plan    []string
		err     error
	}{
		{name: "single step", entries: applied("1.0.0", "1.1.0"), target: "1.1.0", plan: []string{"1.1.0"}},
		{name: "inclusive of target", entries: applied("1.0.0", "1.1.0", "2.0.0"), target: "1.0.0", plan: []string{"2.0.0", "1.1.0", "1.0.0"}},
		{name: "empty target means current", entries: applied("1.0.0", "1.1.0"), plan: []string{"1.1.0"}},
		{name: "order of application does not matter", entries: applied("1.1.0", "1.0.0"), target: "1.0.0", plan: []string{"1.1.0", "1.0.0"}},
		{name: "named entries are skipped", entries: applied("1.0.0", "cleanup", "1.1.0"), target: "1.0.0", plan: []string{"1.1.0", "1.0.0"}},
		{name: "never applied", entries: applied("1.0.0"), target: "1.1.0", err: migration.ErrTargetNotFound},
		{name: "empty ledger", target: "1.0.0", err: migration.ErrTargetNotFound},
	}

	for _, tc := range tt {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			plan, err := planDown(tc.entries, tc.target)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "got %v", err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.plan, plan.Names())
		})
	}
}

func Test_Rebuild(t *testing.T) {
	versions, latest, err := rebuild(ids("1.1.0", "seed", "1.0.0"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "1.1.0"}, versions.Names())
	assert.Equal(t, "1.1.0", latest.Name)

	_, _, err = rebuild(ids("seed"))
	assert.True(t, errors.Is(err, migration.ErrNoChangesRequired))
}
