package migration

import (
	"fmt"
	"log/slog"
	"slices"
)

// registry is the version-ordered union of discovered and explicit migrations.
type registry struct {
	migrations []Migration
}

// discover turns the source locators into file migrations. Locators that do
// not follow the naming convention are skipped.
func discover(source Source, logger *slog.Logger) ([]Migration, error) {
	if source == nil {
		return nil, nil
	}

	locators, err := source.Locators()
	if err != nil {
		return nil, err
	}

	discovered := make([]Migration, 0, len(locators))
	for _, locator := range locators {
		m, ok := NewFileMigration(source, locator)
		if !ok {
			logger.Debug("skipping resource that is not a migration", "locator", locator)
			continue
		}
		discovered = append(discovered, m)
	}

	return discovered, nil
}

// newRegistry concatenates discovered and explicit migrations and sorts them
// by version. Duplicate or negative versions are rejected.
func newRegistry(discovered, explicit []Migration) (*registry, error) {
	all := make([]Migration, 0, len(discovered)+len(explicit))
	all = append(all, discovered...)
	for _, m := range explicit {
		if m == nil {
			continue
		}
		if isNilPointer(m) {
			return nil, fmt.Errorf("%w: nil %T registered", ErrInvalidVersion, m)
		}
		all = append(all, m)
	}

	slices.SortStableFunc(all, func(a, b Migration) int {
		switch {
		case a.Version() < b.Version():
			return -1
		case a.Version() > b.Version():
			return 1
		}
		return 0
	})

	for i, m := range all {
		if m.Version() < 0 {
			return nil, fmt.Errorf("%w: %s has negative version %d", ErrInvalidVersion, describe(m), m.Version())
		}
		if i > 0 && all[i-1].Version() == m.Version() {
			return nil, fmt.Errorf("%w: version %d is provided by both %s and %s",
				ErrDuplicateVersion, m.Version(), describe(all[i-1]), describe(m))
		}
	}

	return &registry{migrations: all}, nil
}

// isNilPointer reports whether m is a typed nil of one of the package's
// migration types.
func isNilPointer(m Migration) bool {
	switch v := m.(type) {
	case *FuncMigration:
		return v == nil
	case *FileMigration:
		return v == nil
	}
	return false
}

func (r *registry) all() []Migration {
	return slices.Clone(r.migrations)
}

// without returns the registry minus the given versions, preserving order.
func (r *registry) without(applied []int64) []Migration {
	appliedSet := make(map[int64]struct{}, len(applied))
	for _, v := range applied {
		appliedSet[v] = struct{}{}
	}

	pending := make([]Migration, 0, len(r.migrations))
	for _, m := range r.migrations {
		if _, ok := appliedSet[m.Version()]; !ok {
			pending = append(pending, m)
		}
	}
	return pending
}
