package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Global configuration variables
var (
	// GoogleBooksAPIKey is the API key for the Google Books volumes API
	GoogleBooksAPIKey string
	// Debug disables background enrichment to keep iteration quiet
	Debug bool
	// UserID identifies the local library owner for dedup lookups
	UserID string
)

// InitConfig initializes the global configuration
func InitConfig() {
	viper.SetDefault("user", "local")
	viper.SetDefault("debug", false)
	viper.SetDefault("catalog.dbfile", "./shelfmate.db")
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("server.url", "http://localhost:8372")

	GoogleBooksAPIKey = viper.GetString("googlebooksapikey")
	Debug = viper.GetBool("debug")
	UserID = viper.GetString("user")
}

// RequireGoogleBooksAPIKey returns the configured API key or a hard error.
// A missing key is a configuration mistake, not a condition to degrade on.
func RequireGoogleBooksAPIKey() (string, error) {
	if GoogleBooksAPIKey == "" {
		return "", fmt.Errorf("google books API key not configured (set GOOGLE_BOOKS_API_KEY or googlebooksapikey in config.yaml)")
	}
	return GoogleBooksAPIKey, nil
}

// SetDebug sets the debug flag
func SetDebug(debug bool) {
	Debug = debug
}
