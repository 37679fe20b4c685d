package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DBPath            string
	TardisAPIKey      string
	TelegramBotToken  string
	TelegramChatID    string
	DefaultOutputPath string
	AllowedUsers      []string
	APIToken          string
	DownloadWorkers   int
}

func Load() Config {
	// Optional .env file; real environment variables take precedence.
	_ = godotenv.Load()

	return Config{
		Port:              getEnv("PORT", "8000"),
		DBPath:            getEnv("DB_PATH", "downloads.db"),
		TardisAPIKey:      getEnv("TARDIS_API_KEY", ""),
		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
		DefaultOutputPath: getEnv("DEFAULT_OUTPUT_PATH", "./datasets"),
		AllowedUsers:      splitCSV(getEnv("ALLOWED_USERS", "")),
		APIToken:          getEnv("API_TOKEN", ""),
		DownloadWorkers:   getEnvInt("DOWNLOAD_WORKERS", 5),
	}
}

// IsUserAllowed reports whether username may use the service. An empty
// allow-list means the service is open to any caller with a username.
func (c Config) IsUserAllowed(username string) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, u := range c.AllowedUsers {
		if u == username {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}
