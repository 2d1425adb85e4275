package configuration

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/geo-migrate/pkg/logging"
)

const (
	CityPolicyNull   = "null"
	CityPolicyRegion = "region"
)

// LoadEnv loads the env files that exist, looking in the working directory
// first and then in the nearest directory holding a go.mod.
func LoadEnv(envFiles []string) (int, error) {
	root := moduleRoot()
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fileExists(file) {
			existingFiles = append(existingFiles, file)
			continue
		}
		if root == "" || filepath.IsAbs(file) {
			continue
		}
		if candidate := filepath.Join(root, file); fileExists(candidate) {
			existingFiles = append(existingFiles, candidate)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func moduleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type StateVariantOptions struct {
	Enabled     bool   `env:"ENABLE_STATE_VARIANT" envDefault:"false"`
	RootKey     string `env:"STATE_ROOT_KEY" envDefault:"usa"`
	CountryName string `env:"STATE_COUNTRY_NAME" envDefault:"United States"`
}

type AssignmentOptions struct {
	LinkInsertCap     int    `env:"LINK_INSERT_CAP" envDefault:"1000"`
	InternationalOnly bool   `env:"INTERNATIONAL_ONLY" envDefault:"false"`
	TargetCountryISO  string `env:"TARGET_COUNTRY_ISO" envDefault:"USA"`
}

type Configuration struct {
	LegacyDatabaseURL string        `env:"LEGACY_DB_URL"`
	TargetDatabaseURL string        `env:"TARGET_DB_URL"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"text"`
	ConnectTimeout    time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	CityPolicy        string        `env:"CITY_POLICY" envDefault:"null"`

	StateVariant StateVariantOptions
	Assignment   AssignmentOptions

	// Empty disables the run manifest.
	ManifestDir string `env:"MANIFEST_DIR"`
	// Empty disables the node-exporter textfile.
	MetricsTextfile string `env:"METRICS_TEXTFILE"`

	logger *logrus.Logger
}

// Load reads the env files and the process environment into a validated
// Configuration.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	return logging.ParseLevel(c.LogLevel)
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.logger = logging.NewLogger(c.LogrusLogLevel(), c.LogFormat)
	return nil
}

// Validate normalizes enum-like fields and rejects unusable values.
func (c *Configuration) Validate() error {
	if strings.TrimSpace(c.LegacyDatabaseURL) == "" {
		return fmt.Errorf("LEGACY_DB_URL is required")
	}
	if strings.TrimSpace(c.TargetDatabaseURL) == "" {
		return fmt.Errorf("TARGET_DB_URL is required")
	}

	policy := strings.ToLower(strings.TrimSpace(c.CityPolicy))
	if policy == "" {
		policy = CityPolicyNull
	}
	switch policy {
	case CityPolicyNull, CityPolicyRegion:
	default:
		return fmt.Errorf("invalid CITY_POLICY=%q (expected null|region)", c.CityPolicy)
	}
	c.CityPolicy = policy

	format := strings.ToLower(strings.TrimSpace(c.LogFormat))
	switch format {
	case "", "text":
		format = "text"
	case "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT=%q (expected text|json)", c.LogFormat)
	}
	c.LogFormat = format

	if c.Assignment.LinkInsertCap <= 0 {
		return fmt.Errorf("LINK_INSERT_CAP must be positive, got %d", c.Assignment.LinkInsertCap)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("CONNECT_TIMEOUT must be positive, got %s", c.ConnectTimeout)
	}
	if strings.TrimSpace(c.StateVariant.RootKey) == "" {
		return fmt.Errorf("STATE_ROOT_KEY must not be empty")
	}
	c.Assignment.TargetCountryISO = strings.ToUpper(strings.TrimSpace(c.Assignment.TargetCountryISO))
	return nil
}

// RedactURL masks the password of a connection string for logging. Both URL
// and key=value forms are handled.
func RedactURL(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
		return u.String()
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if k, _, ok := strings.Cut(f, "="); ok && strings.EqualFold(k, "password") {
			fields[i] = k + "=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}
