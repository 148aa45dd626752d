package engine

import (
	"github.com/denismitr/kvtern/internal/ledger"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
)

// planUp selects the outstanding versions above current up to and
// including the target, in ascending order
func planUp(ids migration.Identifiers, entries migration.Entries, target string) (migration.Identifiers, error) {
	versions := ids.Versions()
	if target == "" {
		if len(versions) == 0 {
			return nil, errors.Wrap(migration.ErrNoChangesRequired, "catalog has no versions")
		}
		target = versions[len(versions)-1].Name
	}

	targetID, ok := find(versions, target)
	if !ok {
		return nil, errors.Wrapf(migration.ErrTargetNotFound, "version [%s] is not in the catalog", target)
	}

	current := ledger.Current(entries)

	var plan migration.Identifiers
	for _, id := range ledger.Outstanding(ids, entries) {
		if migration.Compare(id, current) <= 0 {
			continue
		}

		if migration.Compare(id, targetID) > 0 {
			break
		}

		plan = append(plan, id)
	}

	if plan.Contains(target) {
		return plan, nil
	}

	if entry, applied := entries.Find(target); applied {
		if !entry.Succeeded() {
			return nil, errors.Wrapf(
				migration.ErrTargetFailed,
				"version [%s] failed with [%s], use repeat to run it again", target, entry.Status,
			)
		}

		return nil, errors.Wrapf(migration.ErrNoChangesRequired, "version [%s] is already applied", target)
	}

	return nil, errors.Wrapf(
		migration.ErrTargetNotFound,
		"version [%s] is below current version [%s]", target, current.Name,
	)
}

// planDown selects the applied versions from current down to and
// including the target, in descending order
func planDown(entries migration.Entries, target string) (migration.Identifiers, error) {
	applied := entries.Identifiers().Versions()
	if len(applied) == 0 {
		return nil, errors.Wrap(migration.ErrTargetNotFound, "no versions were applied")
	}

	if target == "" {
		target = applied[len(applied)-1].Name
	}

	targetID, ok := find(applied, target)
	if !ok {
		return nil, errors.Wrapf(migration.ErrTargetNotFound, "version [%s] was never applied", target)
	}

	var plan migration.Identifiers
	for i := len(applied) - 1; i >= 0; i-- {
		if migration.Compare(applied[i], targetID) < 0 {
			break
		}

		plan = append(plan, applied[i])
	}

	return plan, nil
}

// rebuild lists every catalog version in ascending order and the latest
// one, whose body is the only one a reset runs
func rebuild(ids migration.Identifiers) (migration.Identifiers, migration.Identifier, error) {
	versions := ids.Versions()
	if len(versions) == 0 {
		return nil, migration.Identifier{}, errors.Wrap(migration.ErrNoChangesRequired, "catalog has no versions")
	}

	return versions, versions[len(versions)-1], nil
}

// remaining is what the ledger would hold once the given versions are removed
func remaining(entries migration.Entries, removed ...string) migration.Entries {
	drop := make(map[string]bool, len(removed))
	for _, v := range removed {
		drop[v] = true
	}

	result := make(migration.Entries, 0, len(entries))
	for i := range entries {
		if !drop[entries[i].Version] {
			result = append(result, entries[i])
		}
	}

	return result
}

func find(ids migration.Identifiers, name string) (migration.Identifier, bool) {
	for i := range ids {
		if ids[i].Name == name {
			return ids[i], true
		}
	}

	return migration.Identifier{}, false
}
