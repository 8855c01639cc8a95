package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	// Gateway selects the outbound messaging channel: "callmebot" or "smtp"
	Gateway      string
	CallMeBotURL string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	ReminderPeriod   time.Duration
	ReminderWindow   time.Duration
	SendRetries      int
	MemberCodePrefix string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DBConn:           getEnv("DB_CONN", "host=localhost port=5432 user=test password=test dbname=pledges sslmode=disable"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		Gateway:          getEnv("GATEWAY", "callmebot"),
		CallMeBotURL:     getEnv("CALLMEBOT_URL", "https://api.callmebot.com/whatsapp.php"),
		SMTPHost:         getEnv("SMTP_HOST", "localhost"),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SenderEmail:      getEnv("SENDER_EMAIL", "noreply@pledge-service.local"),
		MemberCodePrefix: getEnv("MEMBER_CODE_PREFIX", "MBR"),
	}

	periodHours, err := strconv.Atoi(getEnv("REMINDER_PERIOD_HOURS", "24"))
	if err != nil || periodHours <= 0 {
		return nil, fmt.Errorf("REMINDER_PERIOD_HOURS must be a positive integer")
	}
	cfg.ReminderPeriod = time.Duration(periodHours) * time.Hour

	windowDays, err := strconv.Atoi(getEnv("REMINDER_WINDOW_DAYS", "7"))
	if err != nil || windowDays <= 0 {
		return nil, fmt.Errorf("REMINDER_WINDOW_DAYS must be a positive integer")
	}
	cfg.ReminderWindow = time.Duration(windowDays) * 24 * time.Hour

	retries, err := strconv.Atoi(getEnv("SEND_RETRIES", "1"))
	if err != nil || retries < 0 {
		return nil, fmt.Errorf("SEND_RETRIES must be a non-negative integer")
	}
	cfg.SendRetries = retries

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.Gateway != "callmebot" && cfg.Gateway != "smtp" {
		return nil, fmt.Errorf("GATEWAY must be callmebot or smtp, got %q", cfg.Gateway)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
