package migration

import (
	"sort"
	"time"
)

// StatusSuccess marks a ledger entry of a migration that completed,
// any other status is the message of the error the migration failed with
const StatusSuccess = "success"

// Entry is a ledger record of an applied migration
type Entry struct {
	Version     string    `json:"version" db:"version"`
	Description string    `json:"description" db:"description"`
	Path        string    `json:"path" db:"path"`
	Status      string    `json:"status" db:"status"`
	Order       int       `json:"order" db:"ord"`
	MigratedAt  time.Time `json:"migrated_at" db:"migrated_at"`
}

type Entries []Entry

func NewEntry(m *Migration, migratedAt time.Time, status string) Entry {
	return Entry{
		Version:     m.Version,
		Description: m.Description,
		Path:        m.Path,
		Status:      status,
		Order:       m.Order,
		MigratedAt:  migratedAt,
	}
}

func (e Entry) Succeeded() bool {
	return e.Status == StatusSuccess
}

func (e Entry) Identifier() Identifier {
	id := ParseIdentifier(e.Version)
	id.Order = e.Order
	return id
}

// Sort orders entries by the time they were applied, ties are broken by order
func (ee Entries) Sort() {
	sort.SliceStable(ee, func(i, j int) bool {
		if !ee[i].MigratedAt.Equal(ee[j].MigratedAt) {
			return ee[i].MigratedAt.Before(ee[j].MigratedAt)
		}

		return ee[i].Order < ee[j].Order
	})
}

func (ee Entries) Find(version string) (Entry, bool) {
	for i := len(ee) - 1; i >= 0; i-- {
		if ee[i].Version == version {
			return ee[i], true
		}
	}

	return Entry{}, false
}

func (ee Entries) Identifiers() Identifiers {
	result := make(Identifiers, 0, len(ee))
	for i := range ee {
		result = append(result, ee[i].Identifier())
	}
	return result
}
