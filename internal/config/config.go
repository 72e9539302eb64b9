package config // package config loads application configuration from environment variables

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable named in its envconfig tag.  Variables may come
// from the process environment or from a .env file loaded by the binary
// before Load is called.
type Config struct {
	Env         string `envconfig:"APP_ENV" default:"dev"`        // application environment (dev/test/prod)
	Port        string `envconfig:"APP_PORT" default:"8080"`      // HTTP port to listen on
	StoreDriver string `envconfig:"STORE_DRIVER" default:"mysql"` // mysql or memory

	DBUser    string `envconfig:"DB_USER"`                     // database username
	DBPass    string `envconfig:"DB_PASS"`                     // database password (optional)
	DBHost    string `envconfig:"DB_HOST" default:"127.0.0.1"` // database host address
	DBPort    string `envconfig:"DB_PORT" default:"3306"`      // database port number
	DBName    string `envconfig:"DB_NAME"`                     // database name
	DBMigrate bool   `envconfig:"DB_MIGRATE" default:"true"`   // apply the schema on startup

	// Seed for the in-memory facility directory, "id|club_id|name|sport|tz;..."
	MemoryFacilities string `envconfig:"MEMORY_FACILITIES"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"` // secret used to verify access tokens

	RabbitURL      string `envconfig:"RABBITMQ_URL"`                                // empty disables event publishing
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"scheduling.events"` // topic exchange for scheduling events
	EventBuffer    int    `envconfig:"EVENT_BUFFER" default:"256"`                  // pending events before dropping
	NotifyQueue    string `envconfig:"NOTIFY_QUEUE" default:"scheduling.notifications"`
	NotifyLogPath  string `envconfig:"NOTIFY_LOG_PATH" default:"logs/notifications.log"`

	OTelEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"slot-scheduler"`
}

// Load decodes the environment into a Config and checks the combinations
// envconfig cannot express.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	if c.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET must not be empty")
	}
	c.StoreDriver = strings.ToLower(c.StoreDriver)
	switch c.StoreDriver {
	case "memory":
	case "mysql":
		if c.DBUser == "" || c.DBName == "" {
			return Config{}, fmt.Errorf("config: DB_USER and DB_NAME are required with STORE_DRIVER=mysql")
		}
	default:
		return Config{}, fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.EventBuffer < 1 {
		c.EventBuffer = 1
	}
	return c, nil
}
