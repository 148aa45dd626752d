package ledger

import (
	"context"

	"github.com/denismitr/kvtern/internal/database"
	"github.com/denismitr/kvtern/internal/source"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
)

// Ledger answers version questions by combining the entries
// of the store with the identifiers of the catalog
type Ledger struct {
	store    database.LedgerStore
	selector source.Selector
}

func New(store database.LedgerStore, selector source.Selector) *Ledger {
	return &Ledger{store: store, selector: selector}
}

// FindAll returns every entry ascending by the time it was applied
func (l *Ledger) FindAll(ctx context.Context) (migration.Entries, error) {
	entries, err := l.store.FindAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not read migrations ledger")
	}

	entries.Sort()

	return entries, nil
}

// CurrentVersion is the greatest semantic version in the ledger,
// named entries are ignored
func (l *Ledger) CurrentVersion(ctx context.Context) (migration.Identifier, error) {
	entries, err := l.FindAll(ctx)
	if err != nil {
		return migration.Identifier{}, err
	}

	return Current(entries), nil
}

// OutstandingVersions are the catalog versions that are not in the ledger,
// in ascending order, limit of zero or less means all of them
func (l *Ledger) OutstandingVersions(ctx context.Context, limit int) (migration.Identifiers, error) {
	entries, err := l.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := l.selector.List(ctx)
	if err != nil {
		return nil, err
	}

	return Outstanding(ids, entries).Limit(limit), nil
}

func (l *Ledger) Record(ctx context.Context, e migration.Entry, mode database.RecordMode) error {
	if err := l.store.Record(ctx, e, mode); err != nil {
		return errors.Wrapf(err, "could not record migration [%s] with %s", e.Version, mode)
	}

	return nil
}

func (l *Ledger) Remove(ctx context.Context, version string) error {
	if err := l.store.Remove(ctx, version); err != nil {
		return errors.Wrapf(err, "could not remove migration [%s] from ledger", version)
	}

	return nil
}

func (l *Ledger) Clear(ctx context.Context) error {
	if err := l.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "could not clear migrations ledger")
	}

	return nil
}

// Current picks the greatest semantic version among the entries
// or the zero version when there is none
func Current(entries migration.Entries) migration.Identifier {
	current := migration.Zero()
	for _, e := range entries {
		id := e.Identifier()
		if !id.IsVersion() {
			continue
		}

		if migration.Compare(id, current) > 0 {
			current = id
		}
	}

	return current
}

// Outstanding filters the semantic versions of the catalog down
// to those without a ledger entry
func Outstanding(ids migration.Identifiers, entries migration.Entries) migration.Identifiers {
	applied := make(map[string]bool, len(entries))
	for i := range entries {
		applied[entries[i].Version] = true
	}

	var result migration.Identifiers
	for _, id := range ids.Versions() {
		if !applied[id.Name] {
			result = append(result, id)
		}
	}

	return result
}
