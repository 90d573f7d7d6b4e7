// Package config loads the service configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"time"

	"github.com/spf13/viper"

	"printhub/fiscal"
	"printhub/mhi"
)

type Config struct {
	App       AppConfig
	Printer   PrinterConfig
	Numbering fiscal.Numbering
	Journal   JournalConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name     string
	Port     string
	Debug    bool
	Software string
}

type PrinterConfig struct {
	Port       string
	BaudRate   int
	TimeoutSec int
	MaxRetries int
	RetryDelay time.Duration
	Brand      string
	BranchID   string
	TerminalID string
	SyncClock  bool
}

type JournalConfig struct {
	Path          string
	SalesbookPath string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
}

// Load reads .env when present, then the environment, then defaults.
func Load() *Config {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit env file path, for tests.
func LoadFrom(envFile string) *Config {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// A missing env file is fine, the environment still applies.
	_ = v.ReadInConfig()

	v.SetDefault("APP_NAME", "printhub")
	v.SetDefault("APP_PORT", "8420")
	v.SetDefault("APP_DEBUG", false)
	v.SetDefault("APP_SOFTWARE", "printhub/1.0")
	v.SetDefault("PRINTER_PORT", "")
	v.SetDefault("PRINTER_BAUD_RATE", 9600)
	v.SetDefault("PRINTER_TIMEOUT_SEC", 5)
	v.SetDefault("PRINTER_MAX_RETRIES", 2)
	v.SetDefault("PRINTER_RETRY_DELAY_MS", 200)
	v.SetDefault("PRINTER_BRAND", "cts310ii")
	v.SetDefault("PRINTER_BRANCH_ID", "9001")
	v.SetDefault("PRINTER_TERMINAL_ID", "1001")
	v.SetDefault("PRINTER_SYNC_CLOCK", true)
	v.SetDefault("FISCAL_SOURCE", "")
	v.SetDefault("FISCAL_REGISTRATION_ID", "")
	v.SetDefault("FISCAL_REGISTER_ID", "")
	v.SetDefault("JOURNAL_PATH", "./data/journal.json")
	v.SetDefault("SALESBOOK_PATH", "./data/salesbook.xlsx")
	v.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_DURATION", 60)

	return &Config{
		App: AppConfig{
			Name:     v.GetString("APP_NAME"),
			Port:     v.GetString("APP_PORT"),
			Debug:    v.GetBool("APP_DEBUG"),
			Software: v.GetString("APP_SOFTWARE"),
		},
		Printer: PrinterConfig{
			Port:       v.GetString("PRINTER_PORT"),
			BaudRate:   v.GetInt("PRINTER_BAUD_RATE"),
			TimeoutSec: v.GetInt("PRINTER_TIMEOUT_SEC"),
			MaxRetries: v.GetInt("PRINTER_MAX_RETRIES"),
			RetryDelay: time.Duration(v.GetInt("PRINTER_RETRY_DELAY_MS")) * time.Millisecond,
			Brand:      v.GetString("PRINTER_BRAND"),
			BranchID:   v.GetString("PRINTER_BRANCH_ID"),
			TerminalID: v.GetString("PRINTER_TERMINAL_ID"),
			SyncClock:  v.GetBool("PRINTER_SYNC_CLOCK"),
		},
		Numbering: fiscal.Numbering{
			Source:         v.GetString("FISCAL_SOURCE"),
			RegistrationID: v.GetString("FISCAL_REGISTRATION_ID"),
			RegisterID:     v.GetString("FISCAL_REGISTER_ID"),
		},
		Journal: JournalConfig{
			Path:          v.GetString("JOURNAL_PATH"),
			SalesbookPath: v.GetString("SALESBOOK_PATH"),
		},
		CORS: CORSConfig{
			AllowedOrigins: v.GetStringSlice("CORS_ALLOWED_ORIGINS"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: v.GetInt("RATE_LIMIT_DURATION"),
		},
	}
}

// DriverConfig converts the loaded settings into the driver form.
func (c *Config) DriverConfig(logf func(string)) (mhi.Config, error) {
	brand, err := mhi.BrandByName(c.Printer.Brand)
	if err != nil {
		return mhi.Config{}, err
	}
	return mhi.Config{
		Port:       c.Printer.Port,
		BaudRate:   c.Printer.BaudRate,
		Timeout:    time.Duration(c.Printer.TimeoutSec) * time.Second,
		MaxRetries: c.Printer.MaxRetries,
		RetryDelay: c.Printer.RetryDelay,
		Brand:      brand,
		Numbering:  c.Numbering,
		BranchID:   c.Printer.BranchID,
		TerminalID: c.Printer.TerminalID,
		SyncClock:  c.Printer.SyncClock,
		Logger:     logf,
	}, nil
}
