package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddress  string
	Environment    string
	LogLevel       string
	Database       DatabaseConfig
	LedgerDatabase DatabaseConfig
	Migration      MigrationConfig
	KotaPay        KotaPayConfig
	Reconciliation ReconciliationConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Params   string
}

type MigrationConfig struct {
	Dir string
}

type KotaPayConfig struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	TimeoutSeconds int
}

type ReconciliationConfig struct {
	// ReturnWindowDays is the trailing window for the post-settlement
	// return monitor (bank dispute window).
	ReturnWindowDays int
	// BatchLookbackDays bounds the processed-batch summary fetch.
	BatchLookbackDays int
	// CorrectionWindowDays bounds the corrections (NOC) report fetch.
	CorrectionWindowDays int
	// StaleAgeDays is the age past which an unresolved processing
	// payment is flagged for manual review.
	StaleAgeDays int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("KOTAPAY_TIMEOUT_SECONDS", 30)
	viper.SetDefault("RETURN_WINDOW_DAYS", 60)
	viper.SetDefault("BATCH_LOOKBACK_DAYS", 14)
	viper.SetDefault("CORRECTION_WINDOW_DAYS", 30)
	viper.SetDefault("STALE_AGE_DAYS", 7)

	config := &Config{
		ServerAddress: viper.GetString("SERVER_ADDRESS"),
		Environment:   viper.GetString("ENVIRONMENT"),
		LogLevel:      viper.GetString("LOG_LEVEL"),
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Name:     viper.GetString("DB_NAME"),
			Params:   viper.GetString("DB_PARAMS"),
		},
		LedgerDatabase: DatabaseConfig{
			Host:     viper.GetString("LEDGER_DB_HOST"),
			Port:     viper.GetInt("LEDGER_DB_PORT"),
			User:     viper.GetString("LEDGER_DB_USER"),
			Password: viper.GetString("LEDGER_DB_PASSWORD"),
			Name:     viper.GetString("LEDGER_DB_NAME"),
			Params:   viper.GetString("LEDGER_DB_PARAMS"),
		},
		Migration: MigrationConfig{
			Dir: viper.GetString("MIGRATION_DIR"),
		},
		KotaPay: KotaPayConfig{
			BaseURL:        viper.GetString("KOTAPAY_BASE_URL"),
			APIKey:         viper.GetString("KOTAPAY_API_KEY"),
			APISecret:      viper.GetString("KOTAPAY_API_SECRET"),
			TimeoutSeconds: viper.GetInt("KOTAPAY_TIMEOUT_SECONDS"),
		},
		Reconciliation: ReconciliationConfig{
			ReturnWindowDays:     viper.GetInt("RETURN_WINDOW_DAYS"),
			BatchLookbackDays:    viper.GetInt("BATCH_LOOKBACK_DAYS"),
			CorrectionWindowDays: viper.GetInt("CORRECTION_WINDOW_DAYS"),
			StaleAgeDays:         viper.GetInt("STALE_AGE_DAYS"),
		},
	}

	return config, nil
}

// GetDSN returns the MySQL DSN string for the portal database
func (c *Config) GetDSN() string {
	return dsn(c.Database)
}

// GetLedgerDSN returns the MySQL DSN string for the legacy
// practice-management database
func (c *Config) GetLedgerDSN() string {
	return dsn(c.LedgerDatabase)
}

func dsn(d DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
		d.Params,
	)
}

// GetMigrationDBURL returns the database URL for migrations
func (c *Config) GetMigrationDBURL() string {
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Params,
	)
}
