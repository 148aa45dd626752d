package cli

import (
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const DefaultConfigFile = "kvtern.yaml"

const configFileStub = `version: 1
migrations:
  # a %%VARIABLE%% value is read from the environment
  # supported schemes: memory://, bolt://, sqlite://, mysql://, postgres://
  database_url: "%%KVTERN_DATABASE_URL%%"
  local_folder: ./migrations
  require_schema: true
`

var (
	ErrDatabaseURLMissing      = errors.New("database url was not defined")
	ErrMigrationsFolderMissing = errors.New("migrations folder was not defined")
)

type (
	Config struct {
		DatabaseURL      string
		MigrationsFolder string
		RequireSchema    bool
		Debug            bool
	}

	migrations struct {
		LocalFolder   string `yaml:"local_folder"`
		DatabaseURL   string `yaml:"database_url"`
		RequireSchema bool   `yaml:"require_schema"`
	}

	configFile struct {
		Version    int        `yaml:"version"`
		Migrations migrations `yaml:"migrations"`
	}
)

// ConfigFromYaml reads the configuration file, values wrapped in %%
// are names of environment variables
func ConfigFromYaml(path string) (Config, error) {
	var cfg Config

	b, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "could not read kvtern configuration file")
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(b, &cfgFile); err != nil {
		return cfg, errors.Wrap(err, "could not parse kvtern configuration file")
	}

	cfg.DatabaseURL = fromEnv(cfgFile.Migrations.DatabaseURL)
	cfg.MigrationsFolder = fromEnv(cfgFile.Migrations.LocalFolder)
	cfg.RequireSchema = cfgFile.Migrations.RequireSchema

	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	if cfg.DatabaseURL == "" {
		return ErrDatabaseURLMissing
	}

	if cfg.MigrationsFolder == "" {
		return ErrMigrationsFolderMissing
	}

	return nil
}

// InitCfg writes a configuration stub
func InitCfg(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create config file")
	}

	if _, err := io.Copy(f, strings.NewReader(configFileStub)); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "could not write config file")
	}

	return errors.Wrap(f.Close(), "could not close config file")
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

func fromEnv(value string) string {
	if len(value) > 4 && strings.HasPrefix(value, "%%") && strings.HasSuffix(value, "%%") {
		return os.Getenv(strings.Trim(value, "%"))
	}

	return value
}
