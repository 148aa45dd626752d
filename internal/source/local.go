package source

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/denismitr/kvtern/internal/logger"
	"github.com/denismitr/kvtern/migration"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	yamlExtension = ".yaml"
	ymlExtension  = ".yml"
)

// manifest is the on-disk form of a migration definition,
// bodies are looked up in the registry by identifier
type manifest struct {
	Version     string            `yaml:"version"`
	Description string            `yaml:"description"`
	Order       int               `yaml:"order,omitempty"`
	Schema      *migration.Schema `yaml:"schema,omitempty"`
}

type LocalFileSource struct {
	folder   string
	registry *migration.Registry
	lg       logger.Logger
	opts     Options
}

var _ Source = (*LocalFileSource)(nil)

func NewLocalFSSource(
	folder string,
	registry *migration.Registry,
	lg logger.Logger,
	opts Options,
) *LocalFileSource {
	if lg == nil {
		lg = &logger.NullLogger{}
	}

	return &LocalFileSource{
		folder:   folder,
		registry: registry,
		lg:       lg,
		opts:     opts,
	}
}

func (lfs *LocalFileSource) IsValid() bool {
	info, err := os.Stat(lfs.folder)
	if os.IsNotExist(err) {
		return false
	}

	return err == nil && info.IsDir()
}

func (lfs *LocalFileSource) AlreadyExists(version string) bool {
	for _, ext := range []string{yamlExtension, ymlExtension} {
		info, err := os.Stat(filepath.Join(lfs.folder, version+ext))
		if err == nil && !info.IsDir() {
			return true
		}
	}

	return false
}

// Create writes a manifest stub for a new migration
func (lfs *LocalFileSource) Create(version, description string) (*migration.Migration, error) {
	if lfs.AlreadyExists(version) {
		return nil, errors.Wrapf(ErrAlreadyExists, "%s", version)
	}

	mf := manifest{Version: version, Description: description}
	if migration.IsVersion(version) {
		mf.Schema = &migration.Schema{
			Format:  migration.SchemaFormat,
			Version: version,
			Indexes: map[string]migration.Index{
				migration.PrimaryIndex: {Hash: "pk", Sort: "sk"},
			},
			Models: map[string]migration.Model{},
		}
	}

	b, err := yaml.Marshal(&mf)
	if err != nil {
		return nil, errors.Wrapf(err, "could not encode manifest for [%s]", version)
	}

	filename := filepath.Join(lfs.folder, version+yamlExtension)
	if err := ioutil.WriteFile(filename, b, 0644); err != nil {
		return nil, errors.Wrapf(err, "could not create file [%s]", filename)
	}

	return lfs.build(filename, mf), nil
}

// List reads every manifest in the folder, catalog order is the
// lexical order of file names
func (lfs *LocalFileSource) List(ctx context.Context) (migration.Identifiers, error) {
	files, err := lfs.manifestFiles()
	if err != nil {
		return nil, err
	}

	result := make(migration.Identifiers, len(files))
	errs := make([]error, len(files))
	var wg sync.WaitGroup

	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mf, err := lfs.readManifest(files[i])
			if err != nil {
				errs[i] = err
				return
			}

			id := migration.ParseIdentifier(nameFromPath(files[i]))
			id.Order = mf.Order
			result[i] = id
		}(i)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range errs {
		if errs[i] != nil {
			lfs.lg.Error(errs[i])
			return nil, errs[i]
		}
	}

	return result, nil
}

func (lfs *LocalFileSource) Resolve(ctx context.Context, name string) (*migration.Migration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filename, ok := lfs.find(name)
	if !ok {
		return nil, errors.Wrapf(migration.ErrNotFound, "cannot find manifest for [%s] in %s", name, lfs.folder)
	}

	mf, err := lfs.readManifest(filename)
	if err != nil {
		return nil, err
	}

	m := lfs.build(filename, mf)
	if err := validate(m, name, lfs.opts); err != nil {
		return nil, err
	}

	lfs.lg.Debugf("resolved migration [%s] from %s", name, filename)

	return m, nil
}

func (lfs *LocalFileSource) build(filename string, mf manifest) *migration.Migration {
	m := &migration.Migration{
		Version:     mf.Version,
		Description: mf.Description,
		Schema:      mf.Schema,
		Path:        filename,
		Order:       mf.Order,
	}

	if funcs, ok := lfs.registry.Lookup(nameFromPath(filename)); ok {
		m.Up = funcs.Up
		m.Down = funcs.Down
	}

	return m
}

func (lfs *LocalFileSource) find(name string) (string, bool) {
	for _, ext := range []string{yamlExtension, ymlExtension} {
		filename := filepath.Join(lfs.folder, name+ext)
		if info, err := os.Stat(filename); err == nil && !info.IsDir() {
			return filename, true
		}
	}

	return "", false
}

func (lfs *LocalFileSource) manifestFiles() ([]string, error) {
	files, err := ioutil.ReadDir(lfs.folder)
	if err != nil {
		return nil, errors.Wrapf(migration.ErrCatalog, "could not read folder %s: %s", lfs.folder, err)
	}

	seen := make(map[string]bool, len(files))
	var result []string

	for i := range files {
		if !files[i].Mode().IsRegular() || !isManifest(files[i].Name()) {
			continue
		}

		name := nameFromPath(files[i].Name())
		if seen[name] {
			return nil, errors.Wrapf(ErrDuplicateIdentifier, "%s in %s", name, lfs.folder)
		}

		seen[name] = true
		result = append(result, filepath.Join(lfs.folder, files[i].Name()))
	}

	return result, nil
}

func (lfs *LocalFileSource) readManifest(filename string) (manifest, error) {
	var mf manifest

	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return mf, errors.Wrapf(migration.ErrCatalog, "could not read manifest %s: %s", filename, err)
	}

	if err := yaml.Unmarshal(b, &mf); err != nil {
		return mf, errors.Wrapf(migration.ErrCatalog, "could not parse manifest %s: %s", filename, err)
	}

	if mf.Version == "" {
		return mf, errors.Wrapf(migration.ErrMissingVersion, "manifest %s", filename)
	}

	if mf.Version != nameFromPath(filename) {
		return mf, errors.Wrapf(ErrVersionMismatch, "manifest %s declares [%s]", filename, mf.Version)
	}

	return mf, nil
}

func isManifest(name string) bool {
	ext := filepath.Ext(name)
	return ext == yamlExtension || ext == ymlExtension
}

func nameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
