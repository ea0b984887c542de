package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type App struct {
	Port  string `envconfig:"PORT" default:"8080"`
	DBURL string `envconfig:"DB_URL" required:"true"`

	JWTSecret      string `envconfig:"JWT_SECRET" required:"true"`
	JWTExpiryHours int    `envconfig:"JWT_EXPIRY_HOURS" default:"24"`

	RedisURL      string `envconfig:"REDIS_URL"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	SessionCacheTTL    time.Duration `envconfig:"SESSION_CACHE_TTL" default:"5m"`
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
	ServicePageSize    int           `envconfig:"SERVICE_PAGE_SIZE" default:"20"`
	StationPageSize    int           `envconfig:"STATION_PAGE_SIZE" default:"8"`

	RateLimitRPS   float64  `envconfig:"RATE_LIMIT_RPS" default:"10"`
	RateLimitBurst int      `envconfig:"RATE_LIMIT_BURST" default:"20"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	SlowRequestThreshold time.Duration `envconfig:"SLOW_REQUEST_THRESHOLD" default:"200ms"`

	TwilioAccountSID     string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken      string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber    string `envconfig:"TWILIO_PHONE_NUMBER"`
	TwilioWhatsAppNumber string `envconfig:"TWILIO_WHATSAPP_NUMBER"`
}

// TwilioEnabled reports whether transfer notifications can be sent.
func (a App) TwilioEnabled() bool {
	return a.TwilioAccountSID != "" && a.TwilioAuthToken != ""
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
