// Package config loads the sqlbook CLI configuration
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

var AppFs = afero.NewOsFs()

const (
	keyPath   = "path"
	keyDriver = "driver"
	keyDSN    = "dsn"
	keyDebug  = "debug"
)

// Config holds the CLI configuration
type Config struct {
	// Path is the sql source file or directory
	Path string
	// Driver is the driver adapter name (postgres, mysql or sqlite)
	Driver string
	// DSN is the data source name used by "run"
	DSN   string
	Debug bool
}

// Load loads configuration from the config file (".sqlbook.yaml" in the working directory, the home
// directory or ~/.config/sqlbook), SQLBOOK_ environment variables and .env / .env.local files
//
// the dsn falls back to DATABASE_URL
func Load() (*Config, error) {
	return LoadFs(AppFs)
}

// LoadFs is Load reading config and .env files from the given filesystem
func LoadFs(fs afero.Fs) (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}
	if err = loadEnvFile(fs, ".env", false); err != nil {
		return nil, err
	}
	if err = loadEnvFile(fs, ".env.local", true); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigName(".sqlbook")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "sqlbook"))

	v.SetEnvPrefix("SQLBOOK")
	v.AutomaticEnv()

	v.SetDefault(keyPath, "sql")
	v.SetDefault(keyDriver, "postgres")
	v.SetDefault(keyDebug, false)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		Path:   v.GetString(keyPath),
		Driver: v.GetString(keyDriver),
		DSN:    v.GetString(keyDSN),
		Debug:  v.GetBool(keyDebug),
	}
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}

// loadEnvFile sets the variables of a .env file - existing variables are kept unless overload
func loadEnvFile(fs afero.Fs, name string, overload bool) error {
	f, err := fs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	vars, err := godotenv.Parse(f)
	if err != nil {
		return err
	}
	for k, val := range vars {
		if _, exists := os.LookupEnv(k); exists && !overload {
			continue
		}
		if err = os.Setenv(k, val); err != nil {
			return err
		}
	}
	return nil
}
