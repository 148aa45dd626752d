package kvtern

import (
	"github.com/denismitr/kvtern/internal/source"
	"github.com/denismitr/kvtern/migration"
)

type (
	sourceConfig struct {
		requireSchema bool
	}

	SourceConfigurator func(sc *sourceConfig)
)

// UseLocalFolderSource reads migration manifests from the folder,
// bodies are taken from the registry by identifier
func UseLocalFolderSource(folder string, registry *migration.Registry, configurators ...SourceConfigurator) OptionFunc {
	var sc sourceConfig
	for _, c := range configurators {
		c(&sc)
	}

	return func(m *Migrator) error {
		m.newSource = localFolderSource(folder, registry, sc)
		return nil
	}
}

func UseInMemorySource(factories ...migration.Factory) OptionFunc {
	return UseInMemorySourceWith(nil, factories...)
}

func UseInMemorySourceWith(configurators []SourceConfigurator, factories ...migration.Factory) OptionFunc {
	var sc sourceConfig
	for _, c := range configurators {
		c(&sc)
	}

	return func(m *Migrator) error {
		s, err := source.NewInMemorySource(source.Options{RequireSchema: sc.requireSchema}, factories...)
		if err != nil {
			return err
		}

		m.newSource = func(*Migrator) (source.Catalog, error) {
			return s, nil
		}

		return nil
	}
}

// WithRequiredSchema makes migrations without a schema document fail to resolve
func WithRequiredSchema() SourceConfigurator {
	return func(sc *sourceConfig) {
		sc.requireSchema = true
	}
}

func localFolderSource(folder string, registry *migration.Registry, sc sourceConfig) sourceFactory {
	return func(m *Migrator) (source.Catalog, error) {
		return source.NewLocalFSSource(folder, registry, m.lg, source.Options{RequireSchema: sc.requireSchema}), nil
	}
}
