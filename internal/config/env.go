package config

import (
	"os"
	"strconv"
	"time"
)

func applyEnv(c *Config) {
	c.Environment = getEnv("ENV", c.Environment)
	c.APIKey = getEnv("API_KEY", c.APIKey)
	c.ApiUrl = getEnv("API_URL", c.ApiUrl)
	c.WsUrl = getEnv("WS_URL", c.WsUrl)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.PrintersFile = getEnv("PRINTERS_FILE", c.PrintersFile)
	c.ReconnectDelay = getEnvDuration("RECONNECT_DELAY", c.ReconnectDelay)

	c.Guard.Backend = getEnv("GUARD_BACKEND", c.Guard.Backend)
	c.Guard.Window = getEnvDuration("GUARD_WINDOW", c.Guard.Window)
	c.Guard.MaxEntries = getEnvInt("GUARD_MAX_ENTRIES", c.Guard.MaxEntries)
	c.Guard.RedisURL = getEnv("REDIS_URL", c.Guard.RedisURL)
	c.Guard.Policy = getEnv("GUARD_POLICY", c.Guard.Policy)

	c.Printer.ConnectTimeout = getEnvDuration("PRINTER_CONNECT_TIMEOUT", c.Printer.ConnectTimeout)
	c.Printer.WriteTimeout = getEnvDuration("PRINTER_WRITE_TIMEOUT", c.Printer.WriteTimeout)
	c.Printer.IdleTimeout = getEnvDuration("PRINTER_IDLE_TIMEOUT", c.Printer.IdleTimeout)
	c.Printer.SettleDelay = getEnvDuration("PRINTER_SETTLE_DELAY", c.Printer.SettleDelay)
	c.Printer.Retries = getEnvInt("PRINT_RETRIES", c.Printer.Retries)

	c.Receipt.Columns = getEnvInt("RECEIPT_COLUMNS", c.Receipt.Columns)
	c.Receipt.CodePage = getEnv("RECEIPT_CODE_PAGE", c.Receipt.CodePage)
	c.Receipt.MenuURL = getEnv("MENU_URL", c.Receipt.MenuURL)
	c.Receipt.Timezone = getEnv("RECEIPT_TIMEZONE", c.Receipt.Timezone)

	c.Raster.Enabled = getEnvBool("RASTER_ENABLED", c.Raster.Enabled)
	c.Raster.ChromePath = getEnv("CHROME_PATH", c.Raster.ChromePath)

	c.Kafka.Brokers = getEnv("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)
	c.Kafka.EventsTopic = getEnv("KAFKA_EVENTS_TOPIC", c.Kafka.EventsTopic)

	c.Telemetry.URL = getEnv("TELEMETRY_URL", c.Telemetry.URL)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return Duration(d)
		}
	}
	return defaultValue
}
