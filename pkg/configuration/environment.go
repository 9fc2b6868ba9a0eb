package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/personnel-sync/pkg/logging"
)

const Production = "production"

var defaultEnvFiles = []string{".env", ".env.local"}

var singleton = sync.OnceValues(func() (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(defaultEnvFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
})

// LoadEnv loads the env files found in the working directory, or failing that in the
// nearest parent directory holding a go.mod. It returns the number of files loaded.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root, ok := moduleRoot(); ok {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, envFiles []string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func moduleRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"personnel_sync"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type LogOptions struct {
	Level string `env:"LOG_LEVEL" envDefault:"error"`
	Path  string `env:"LOG_PATH" envDefault:"./logs/app.log"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"personnel-sync"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

// RateLimitOptions configures the pacer between successive submissions of one organisation.
type RateLimitOptions struct {
	SubmitInterval time.Duration `env:"RATE_LIMIT_SUBMIT_INTERVAL" envDefault:"1s"`
	// ArchiveResourceInterval spaces the archive resource side pass.
	ArchiveResourceInterval time.Duration `env:"RATE_LIMIT_ARCHIVE_RESOURCE_INTERVAL" envDefault:"10s"`
	Storage                 string        `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
}

func (r *RateLimitOptions) Validate() error {
	if r.SubmitInterval < 0 {
		return fmt.Errorf("rate limit SubmitInterval must be non-negative, got %s", r.SubmitInterval)
	}
	if r.ArchiveResourceInterval < 0 {
		return fmt.Errorf("rate limit ArchiveResourceInterval must be non-negative, got %s", r.ArchiveResourceInterval)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	return nil
}

type RetryOptions struct {
	Mode        string        `env:"RETRY_MODE" envDefault:"exponential"` // exponential or fixed
	BaseDelay   time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`
	MaxDelay    time.Duration `env:"RETRY_MAX_DELAY" envDefault:"60s"`
	MaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"10"`
	Timeout     time.Duration `env:"RETRY_TIMEOUT" envDefault:"5m"`
	JitterMax   time.Duration `env:"RETRY_JITTER_MAX" envDefault:"200ms"`
}

func (r *RetryOptions) Validate() error {
	if r.Mode != "exponential" && r.Mode != "fixed" {
		return fmt.Errorf("retry Mode must be 'exponential' or 'fixed', got '%s'", r.Mode)
	}
	if r.MaxAttempts < 1 {
		return fmt.Errorf("retry MaxAttempts must be positive, got %d", r.MaxAttempts)
	}
	if r.BaseDelay > r.MaxDelay {
		return fmt.Errorf("retry BaseDelay %s exceeds MaxDelay %s", r.BaseDelay, r.MaxDelay)
	}
	return nil
}

// OpsGuardOptions protects the mutating API endpoints and the metrics endpoint.
type OpsGuardOptions struct {
	Enabled       bool   `env:"OPS_GUARD_ENABLED" envDefault:"false"`
	CIDRs         string `env:"OPS_GUARD_CIDRS"`
	Token         string `env:"OPS_GUARD_TOKEN"`
	BasicAuthUser string `env:"OPS_GUARD_BASIC_AUTH_USER"`
	BasicAuthPass string `env:"OPS_GUARD_BASIC_AUTH_PASS"`
	RealIPHeader  string `env:"REAL_IP_HEADER"`
}

type ScheduleOptions struct {
	BulkInterval   time.Duration `env:"SCHEDULE_BULK_INTERVAL" envDefault:"24h"`
	DeltaInterval  time.Duration `env:"SCHEDULE_DELTA_INTERVAL" envDefault:"10m"`
	RetryInterval  time.Duration `env:"SCHEDULE_RETRY_INTERVAL" envDefault:"6h"`
	InitialDelay   time.Duration `env:"SCHEDULE_INITIAL_DELAY" envDefault:"30s"`
	UnitRefreshTTL time.Duration `env:"SCHEDULE_UNIT_REFRESH_TTL" envDefault:"1h"`
}

type Configuration struct {
	Database      DatabaseOptions
	Log           LogOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	RateLimit     RateLimitOptions
	Retry         RetryOptions
	Schedule      ScheduleOptions
	OpsGuard      OpsGuardOptions

	RedisURL          string `env:"REDIS_URL" envDefault:"localhost:6379"`
	CursorStorage     string `env:"CURSOR_STORAGE" envDefault:"memory"`  // memory or redis
	StateStorage      string `env:"STATE_STORAGE" envDefault:"postgres"` // postgres or memory
	OrganisationsFile string `env:"ORGANISATIONS_FILE" envDefault:"organisations.yaml"`
	// IdentityMaskingKey keys the BLAKE2b identity mask of organisations using keyed masking.
	IdentityMaskingKey string `env:"IDENTITY_MASKING_KEY"`
	ServerPort         int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment   string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress      string `env:"-"`
	AllowedOrigins     string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	// Outbound calls carry this header with a fresh uuidv4.
	RequestIDHeader string        `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	return logging.ParseLevel(c.Log.Level)
}

// Origins returns the comma separated AllowedOrigins.
func (c *Configuration) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Use returns the process configuration and panics when it cannot be loaded.
func Use() *Configuration {
	c, err := singleton()
	if err != nil {
		panic(err)
	}
	return c
}

// Load returns the process configuration, loading it on first use.
func Load() (*Configuration, error) {
	return singleton()
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
	if err := c.parse(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.Log.Path)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger
	return nil
}

func (c *Configuration) parse() error {
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit configuration error: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry configuration error: %w", err)
	}
	for name, v := range map[string]string{"CURSOR_STORAGE": c.CursorStorage, "STATE_STORAGE": c.StateStorage} {
		switch v {
		case "memory", "redis", "postgres":
		default:
			return fmt.Errorf("invalid %s=%q", name, v)
		}
	}
	if c.CursorStorage == "postgres" {
		return fmt.Errorf("invalid CURSOR_STORAGE=%q (expected memory|redis)", c.CursorStorage)
	}
	if c.StateStorage == "redis" {
		return fmt.Errorf("invalid STATE_STORAGE=%q (expected postgres|memory)", c.StateStorage)
	}

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
