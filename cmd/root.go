package cmd

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/shelfmate/internal/config"
)

// CLI represents the complete command structure for the shelfmate
// application.
type CLI struct {
	// Global flags
	Debug bool   `help:"Enable debug logging and disable background enrichment"`
	User  string `help:"Acting user id (defaults to the configured user)"`

	CatalogDB string `help:"Path to catalog SQLite database file (default ./shelfmate.db)"`
	CacheDB   string `help:"Path to cache SQLite database file (default ./cache.db)"`
	Server    string `help:"Base URL of the shelfmate server (default http://localhost:8372)"`

	Import  ImportCmd  `cmd:"" help:"Import books from a Goodreads-style CSV export"`
	Add     AddCmd     `cmd:"" help:"Search the sources and add a book to the library"`
	Hydrate HydrateCmd `cmd:"" help:"Fill missing metadata for one book or the whole library"`
	Enrich  EnrichCmd  `cmd:"" help:"Scan the library and enrich incomplete books in the background"`
	Like    LikeCmd    `cmd:"" help:"Toggle the like for a book"`
	Feed    FeedCmd    `cmd:"" help:"Show the community feed"`
	Export  ExportCmd  `cmd:"" help:"Export the library to YAML or JSON"`
	Serve   ServeCmd   `cmd:"" help:"Run the shelfmate server"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(slog.LevelInfo)
	initConfig()

	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("shelfmate"),
		kong.Description("A personal reading tracker that reconciles book metadata across sources."),
		kong.UsageOnError(),
	)

	updateGlobalConfig(&cli)
	if config.Debug {
		initLogging(slog.LevelDebug)
	}

	if err := ctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	// Enable environment variable support
	viper.AutomaticEnv()
	if err := viper.BindEnv("googlebooksapikey", "GOOGLE_BOOKS_API_KEY"); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}

	config.InitConfig()
}

func updateGlobalConfig(cli *CLI) {
	config.SetDebug(cli.Debug || viper.GetBool("debug"))
	if cli.User != "" {
		config.UserID = cli.User
	}

	// Flags override config.yaml only when actually given; the defaults
	// for these keys live in config.InitConfig.
	if cli.CatalogDB != "" {
		viper.Set("catalog.dbfile", cli.CatalogDB)
	}
	if cli.CacheDB != "" {
		viper.Set("cache.dbfile", cli.CacheDB)
	}
	if cli.Server != "" {
		viper.Set("server.url", cli.Server)
	}
}

func initLogging(level slog.Level) {
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
