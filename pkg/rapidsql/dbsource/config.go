package dbsource

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config describes the database the source connects to.
type Config struct {
	Dialect  string `yaml:"dialect" validate:"required,oneof=mysql postgres sqlite"`
	Host     string `yaml:"host" validate:"required_unless=Dialect sqlite"`
	Port     int    `yaml:"port" validate:"required_unless=Dialect sqlite"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database" validate:"required"`
	SSLMode  string `yaml:"sslMode"`

	MaxOpenConns    int      `yaml:"maxOpenConns"`
	MaxIdleConns    int      `yaml:"maxIdleConns"`
	ConnMaxLifetime Duration `yaml:"connMaxLifetime"`
}

// Duration accepts "5m" style values in yaml configs.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", value.Value)
	}
	*d = Duration(parsed)

	return nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid database config")
	}

	return nil
}

// LoadFile reads a yaml config file.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading database config")
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing database config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FromEnv builds a Config from DB_* environment variables, loading a .env
// file first when one is present.
func FromEnv() (*Config, error) {
	// Missing .env files are fine, the environment may be set directly.
	_ = godotenv.Load()

	port := 0
	if raw := os.Getenv("DB_PORT"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid DB_PORT %q", raw)
		}
		port = p
	}

	cfg := &Config{
		Dialect:  os.Getenv("DB_DIALECT"),
		Host:     os.Getenv("DB_HOST"),
		Port:     port,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Database: os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSL_MODE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DSN returns the driver name and data source name for the configured
// dialect.
func (c *Config) DSN() (driverName, dsn string, err error) {
	switch c.Dialect {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
		mc.DBName = c.Database
		mc.ParseTime = true

		return "mysql", mc.FormatDSN(), nil
	case "postgres":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}

		return "postgres", fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			quoteDSNValue(c.Host), c.Port, quoteDSNValue(c.User), quoteDSNValue(c.Password),
			quoteDSNValue(c.Database), quoteDSNValue(sslMode)), nil
	case "sqlite":
		return "sqlite", c.Database, nil
	default:
		return "", "", errors.Errorf("unsupported dialect %q", c.Dialect)
	}
}

// quoteDSNValue escapes a value for a postgres keyword/value DSN: values
// containing spaces, quotes or backslashes are single-quoted with the inner
// quotes and backslashes escaped, the lib/pq convention.
func quoteDSNValue(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}

	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)

	return "'" + escaped + "'"
}
