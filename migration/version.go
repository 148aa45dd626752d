package migration

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ZeroVersion is reported as the current version of an empty ledger
const ZeroVersion = "0.0.0"

// Identifier is a migration name, either a strict semantic version
// or an opaque named migration
type Identifier struct {
	Name  string
	Order int

	version *semver.Version
}

type Identifiers []Identifier

// ParseIdentifier classifies the name as a semantic version when it strictly
// parses as one, optionally prefixed with v, any other name is treated as
// a named migration
func ParseIdentifier(name string) Identifier {
	id := Identifier{Name: name}
	if v, err := semver.StrictNewVersion(strings.TrimPrefix(name, "v")); err == nil {
		id.version = v
	}

	return id
}

func Zero() Identifier {
	return ParseIdentifier(ZeroVersion)
}

func IsVersion(name string) bool {
	return ParseIdentifier(name).IsVersion()
}

func (id Identifier) IsVersion() bool {
	return id.version != nil
}

func (id Identifier) IsZero() bool {
	return id.version != nil && id.version.Equal(zeroSemver)
}

func (id Identifier) Semver() *semver.Version {
	return id.version
}

func (id Identifier) String() string {
	return id.Name
}

// Compare orders identifiers by semantic version precedence and then by
// the declared order, named migrations never compare as different
func Compare(a, b Identifier) int {
	if a.version == nil || b.version == nil {
		return 0
	}

	if c := a.version.Compare(b.version); c != 0 {
		return c
	}

	switch {
	case a.Order < b.Order:
		return -1
	case a.Order > b.Order:
		return 1
	default:
		return 0
	}
}

// Versions returns the semantic version subset in ascending order,
// identifiers that compare equal keep their catalog order
func (ids Identifiers) Versions() Identifiers {
	var result Identifiers
	for i := range ids {
		if ids[i].IsVersion() {
			result = append(result, ids[i])
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return Compare(result[i], result[j]) < 0
	})

	return result
}

// Named returns the identifiers that are not semantic versions in catalog order
func (ids Identifiers) Named() Identifiers {
	var result Identifiers
	for i := range ids {
		if !ids[i].IsVersion() {
			result = append(result, ids[i])
		}
	}

	return result
}

func (ids Identifiers) Names() []string {
	result := make([]string, 0, len(ids))
	for i := range ids {
		result = append(result, ids[i].Name)
	}

	return result
}

func (ids Identifiers) Contains(name string) bool {
	for i := range ids {
		if ids[i].Name == name {
			return true
		}
	}

	return false
}

func (ids Identifiers) Limit(limit int) Identifiers {
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}

	return ids
}

var zeroSemver = semver.MustParse(ZeroVersion)
