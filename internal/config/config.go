package config

import (
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`

	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// MonitorConfig tunes the check-in monitor
type MonitorConfig struct {
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	ArrivalBuffer     time.Duration `mapstructure:"arrival_buffer"`  // subtracted from client time
	DueSoonWindow     time.Duration `mapstructure:"due_soon_window"` // NOT_DUE / DUE_SOON boundary
	WarningAfter      time.Duration `mapstructure:"warning_after"`
	UrgentAfter       time.Duration `mapstructure:"urgent_after"`
	CriticalAfter     time.Duration `mapstructure:"critical_after"`
	MatchWindow       time.Duration `mapstructure:"match_window"`
	VeryLateAfter     time.Duration `mapstructure:"very_late_after"`
	NotifyTimeout     time.Duration `mapstructure:"notify_timeout"`
	LoadTimeout       time.Duration `mapstructure:"load_timeout"`
	DispatchBuffer    int           `mapstructure:"dispatch_buffer"`
	InboundBuffer     int           `mapstructure:"inbound_buffer"`
	OperationsChannel string        `mapstructure:"operations_channel"`
	Timezone          string        `mapstructure:"timezone"`
}

type SlackConfig struct {
	BotToken string `mapstructure:"bot_token"`
	APIURL   string `mapstructure:"api_url"`
}

type FirebaseConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type RedisConfig struct {
	CheckInChannel string `mapstructure:"checkin_channel"`
}

// App holds the global config instance
var App Config

// DefaultMonitorConfig returns the monitor defaults
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		TickInterval:      60 * time.Second,
		ArrivalBuffer:     15 * time.Minute,
		DueSoonWindow:     5 * time.Minute,
		WarningAfter:      5 * time.Minute,
		UrgentAfter:       10 * time.Minute,
		CriticalAfter:     15 * time.Minute,
		MatchWindow:       60 * time.Minute,
		VeryLateAfter:     5 * time.Minute,
		NotifyTimeout:     10 * time.Second,
		LoadTimeout:       30 * time.Second,
		DispatchBuffer:    64,
		InboundBuffer:     32,
		OperationsChannel: "#field-ops",
		Timezone:          "UTC",
	}
}

// Validate rejects settings the monitor cannot run with
func (m MonitorConfig) Validate() error {
	durations := map[string]time.Duration{
		"tick_interval":   m.TickInterval,
		"arrival_buffer":  m.ArrivalBuffer,
		"due_soon_window": m.DueSoonWindow,
		"match_window":    m.MatchWindow,
		"notify_timeout":  m.NotifyTimeout,
		"load_timeout":    m.LoadTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("monitor.%s must be positive, got %s", name, d)
		}
	}
	if m.VeryLateAfter < 0 {
		return fmt.Errorf("monitor.very_late_after must not be negative, got %s", m.VeryLateAfter)
	}
	if m.WarningAfter <= 0 || m.UrgentAfter <= m.WarningAfter || m.CriticalAfter <= m.UrgentAfter {
		return fmt.Errorf("monitor thresholds must be ascending: warning=%s urgent=%s critical=%s",
			m.WarningAfter, m.UrgentAfter, m.CriticalAfter)
	}
	if m.DispatchBuffer <= 0 || m.InboundBuffer <= 0 {
		return fmt.Errorf("monitor buffers must be positive: dispatch=%d inbound=%d", m.DispatchBuffer, m.InboundBuffer)
	}
	if _, err := time.LoadLocation(m.Timezone); err != nil {
		return fmt.Errorf("monitor.timezone: %w", err)
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC
func (m MonitorConfig) Location() *time.Location {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) error {
	// Auto-load .env file if present (local development convenience)
	if err := godotenv.Load(); err == nil {
		log.Println("✅ Loaded .env file")
	}

	v := viper.New()

	// Set default values
	v.SetDefault("port", "8080")
	defaults := DefaultMonitorConfig()
	v.SetDefault("monitor.tick_interval", defaults.TickInterval.String())
	v.SetDefault("monitor.arrival_buffer", defaults.ArrivalBuffer.String())
	v.SetDefault("monitor.due_soon_window", defaults.DueSoonWindow.String())
	v.SetDefault("monitor.warning_after", defaults.WarningAfter.String())
	v.SetDefault("monitor.urgent_after", defaults.UrgentAfter.String())
	v.SetDefault("monitor.critical_after", defaults.CriticalAfter.String())
	v.SetDefault("monitor.match_window", defaults.MatchWindow.String())
	v.SetDefault("monitor.very_late_after", defaults.VeryLateAfter.String())
	v.SetDefault("monitor.notify_timeout", defaults.NotifyTimeout.String())
	v.SetDefault("monitor.load_timeout", defaults.LoadTimeout.String())
	v.SetDefault("monitor.dispatch_buffer", defaults.DispatchBuffer)
	v.SetDefault("monitor.inbound_buffer", defaults.InboundBuffer)
	v.SetDefault("monitor.operations_channel", defaults.OperationsChannel)
	v.SetDefault("monitor.timezone", defaults.Timezone)
	v.SetDefault("slack.api_url", "https://slack.com/api")
	v.SetDefault("redis.checkin_channel", "fieldwatch:checkins")

	// Config file settings
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("fieldwatch")
		v.SetConfigType("yaml")
	}

	// Bind standard environment variables (Docker/deploy compatibility)
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("redis_url", "REDIS_URL")

	_ = v.BindEnv("monitor.tick_interval", "FIELDWATCH_TICK_INTERVAL")
	_ = v.BindEnv("monitor.arrival_buffer", "FIELDWATCH_ARRIVAL_BUFFER")
	_ = v.BindEnv("monitor.due_soon_window", "FIELDWATCH_DUE_SOON_WINDOW")
	_ = v.BindEnv("monitor.warning_after", "FIELDWATCH_WARNING_AFTER")
	_ = v.BindEnv("monitor.urgent_after", "FIELDWATCH_URGENT_AFTER")
	_ = v.BindEnv("monitor.critical_after", "FIELDWATCH_CRITICAL_AFTER")
	_ = v.BindEnv("monitor.match_window", "FIELDWATCH_MATCH_WINDOW")
	_ = v.BindEnv("monitor.very_late_after", "FIELDWATCH_VERY_LATE_AFTER")
	_ = v.BindEnv("monitor.notify_timeout", "FIELDWATCH_NOTIFY_TIMEOUT")
	_ = v.BindEnv("monitor.load_timeout", "FIELDWATCH_LOAD_TIMEOUT")
	_ = v.BindEnv("monitor.dispatch_buffer", "FIELDWATCH_DISPATCH_BUFFER")
	_ = v.BindEnv("monitor.inbound_buffer", "FIELDWATCH_INBOUND_BUFFER")
	_ = v.BindEnv("monitor.operations_channel", "FIELDWATCH_OPS_CHANNEL")
	_ = v.BindEnv("monitor.timezone", "FIELDWATCH_TIMEZONE")

	// Bind external services
	_ = v.BindEnv("slack.bot_token", "SLACK_BOT_TOKEN")
	_ = v.BindEnv("slack.api_url", "SLACK_API_URL")
	_ = v.BindEnv("firebase.credentials_file", "FIREBASE_CREDENTIALS_FILE")
	_ = v.BindEnv("redis.checkin_channel", "FIELDWATCH_CHECKIN_CHANNEL")

	// Unbound nested keys resolve as MONITOR_TICK_INTERVAL, SLACK_BOT_TOKEN, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 1. Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("ℹ️  No config file found, using defaults and environment variables")
		} else {
			return err
		}
	} else {
		log.Printf("✅ Loaded config from: %s", v.ConfigFileUsed())
	}

	// 2. Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}

	// 3. Validate before publishing
	if err := cfg.Monitor.Validate(); err != nil {
		return fmt.Errorf("invalid monitor config: %w", err)
	}

	App = cfg
	return nil
}
