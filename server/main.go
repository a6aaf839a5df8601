package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"dentaldesk/internal/api"
	"dentaldesk/internal/billing"
	"dentaldesk/internal/builder"
	"dentaldesk/internal/log"
	"dentaldesk/internal/storage"
	"dentaldesk/internal/ui"
	"dentaldesk/internal/version"
)

func main() {
	// CLI flags with env var fallbacks: --flag > ENV_VAR > default
	port := flag.String("port", getEnv("PORT", "8080"), "Server port")
	environment := flag.String("environment", getEnv("ENVIRONMENT", "development"), "Environment (development or production)")
	logLevel := flag.String("logging", getEnv("LOG_LEVEL", "info"), "Log level (trace, debug, info, warn, error)")
	clinicName := flag.String("clinic-name", getEnv("CLINIC_NAME", "DentalDesk"), "Clinic name shown on printed invoices")
	storageKind := flag.String("storage", getEnv("STORAGE", "sqlite"), "Primary storage (sqlite, postgres, mysql, s3, memory, none)")
	databaseURL := flag.String("database-url", getEnv("DATABASE_URL", ""), "Postgres or MySQL DSN")
	sqlitePath := flag.String("sqlite-path", getEnv("SQLITE_PATH", "dentaldesk.db"), "SQLite database file")
	cachePath := flag.String("cache-path", getEnv("CACHE_PATH", defaultCachePath()), "Local builder cache (sqlite file, empty to disable)")
	s3Endpoint := flag.String("s3-endpoint", getEnv("S3_ENDPOINT", "s3.wasabisys.com"), "S3/Wasabi endpoint")
	s3Region := flag.String("s3-region", getEnv("S3_REGION", "us-east-1"), "S3 region")
	s3Bucket := flag.String("s3-bucket", getEnv("S3_BUCKET", "dentaldesk"), "S3 bucket name")
	s3AccessKeyID := flag.String("s3-access-key-id", getEnv("S3_ACCESS_KEY_ID", ""), "S3 access key ID")
	s3SecretAccessKey := flag.String("s3-secret-access-key", getEnv("S3_SECRET_ACCESS_KEY", ""), "S3 secret access key")
	s3Root := flag.String("s3-root", getEnv("S3_ROOT", ""), "S3 root path (default: /{environment})")
	maxVersions := flag.String("max-versions", getEnv("MAX_VERSIONS", "10"), "Max versions to keep per document (use 'all' for unlimited)")
	mongoURI := flag.String("mongo-uri", getEnv("MONGO_URI", ""), "MongoDB URI for treatments, appointments and insurance claims")
	mongoDatabase := flag.String("mongo-database", getEnv("MONGO_DATABASE", ""), "MongoDB database (default: from URI)")
	templatesDir := flag.String("templates-dir", getEnv("TEMPLATES_DIR", ""), "Directory of extra website templates (*.json, hot-reloaded)")
	historyLimit := flag.Int("history-limit", getEnvInt("HISTORY_LIMIT", 0), "Undo history depth per tenant (0 for unlimited)")
	overdueSchedule := flag.String("overdue-schedule", getEnv("OVERDUE_SCHEDULE", "@hourly"), "Cron schedule for the overdue invoice sweep")
	tenants := flag.String("tenants", getEnv("TENANTS", api.DefaultTenant), "Comma-separated tenants swept for overdue invoices")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetVersion())
		os.Exit(0)
	}

	// Set log level
	log.SetLevel(log.ParseLevel(*logLevel))

	// Print styled header
	ui.PrintHeader(version.GetVersion())

	env := parseEnvironment(*environment)

	// Compute S3 root: use flag value if provided, otherwise default to environment name
	root := *s3Root
	if root == "" {
		root = string(env)
	}

	config := &Config{
		Port:              *port,
		Environment:       env,
		ClinicName:        *clinicName,
		Storage:           strings.ToLower(*storageKind),
		DatabaseURL:       *databaseURL,
		SQLitePath:        *sqlitePath,
		CachePath:         *cachePath,
		S3Endpoint:        *s3Endpoint,
		S3Region:          *s3Region,
		S3Bucket:          *s3Bucket,
		S3AccessKeyID:     *s3AccessKeyID,
		S3SecretAccessKey: *s3SecretAccessKey,
		S3Root:            root,
		MaxVersions:       parseMaxVersions(*maxVersions),
		MongoURI:          *mongoURI,
		MongoDatabase:     *mongoDatabase,
		TemplatesDir:      *templatesDir,
		HistoryLimit:      *historyLimit,
		OverdueSchedule:   *overdueSchedule,
		Tenants:           splitList(*tenants),
	}

	// Print config info
	ui.PrintKeyValue("Port", config.Port)
	ui.PrintKeyValue("Logging", log.GetLevel().String())
	ui.PrintKeyValue("Environment", string(config.Environment))
	ui.PrintKeyValue("Clinic", config.ClinicName)
	fmt.Println()
	ui.PrintKeyValue("Storage", config.Storage)
	switch config.Storage {
	case "sqlite":
		ui.PrintKeyValue("SQLite Path", config.SQLitePath)
	case "s3":
		ui.PrintKeyValue("S3 Endpoint", config.S3Endpoint)
		ui.PrintKeyValue("S3 Bucket", config.S3Bucket)
		ui.PrintKeyValue("S3 Root", config.S3Root)
	}
	ui.PrintKeyValue("Cache", valueOr(config.CachePath, "disabled"))
	ui.PrintKeyValue("Legacy Store", valueOr(redactURI(config.MongoURI), "primary storage"))
	ui.PrintKeyValue("Templates", valueOr(config.TemplatesDir, "built-in only"))
	ui.PrintKeyValue("Overdue Sweep", fmt.Sprintf("%s (%s)", config.OverdueSchedule, strings.Join(config.Tenants, ", ")))
	fmt.Println()

	// Create the primary storage client
	storageClient, err := openStorage(config)
	if err != nil {
		log.Fatal("Failed to create storage client: %v", err)
	}
	defer storage.Close(storageClient)

	// Check storage connection
	log.Info("Connecting to storage...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := storageClient.CheckConnection(ctx); err != nil {
		if config.Storage != "none" {
			log.Fatal("Storage connection failed: %v", err)
		}
		log.Warn("No primary storage configured, builder state lives in the local cache only")
	} else {
		log.Info("Connected to storage.")
	}

	// Local cache for builder state; a failure here only costs the fallback
	var cache storage.Storage
	if config.CachePath != "" {
		local, err := storage.OpenSQLite(config.CachePath)
		if err != nil {
			log.Warn("Local cache unavailable: %v", err)
		} else {
			defer local.Close()
			cache = local
		}
	}

	// Legacy clinic records
	var legacy storage.LegacyReader
	if config.MongoURI != "" {
		mongoReader, err := storage.NewMongoReader(config.MongoURI, config.MongoDatabase)
		if err != nil {
			log.Fatal("Failed to connect to legacy store: %v", err)
		}
		if err := mongoReader.CheckConnection(ctx); err != nil {
			log.Warn("Legacy store unreachable: %v", err)
		}
		defer mongoReader.Close()
		legacy = mongoReader
	}

	billingService := billing.NewService(storageClient, legacy)

	// Template catalog, reloaded when the templates directory changes
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()

	catalog := builder.NewCatalog(config.TemplatesDir)
	if err := catalog.Load(); err != nil {
		log.Warn("Failed to load templates from %s: %v", config.TemplatesDir, err)
	}
	if config.TemplatesDir != "" {
		if err := catalog.Watch(watchCtx); err != nil {
			log.Warn("Template hot reload disabled: %v", err)
		}
	}
	defer catalog.Close()

	primary := storage.Storage(storageClient)
	if config.Storage == "none" {
		primary = nil
	}
	builderManager := builder.NewManager(builder.NewStateStore(primary, cache), catalog, config.HistoryLimit)

	// Overdue invoice sweep
	scheduler, err := billing.NewOverdueScheduler(billingService, config.OverdueSchedule, config.Tenants)
	if err != nil {
		log.Fatal("%v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal("%v", err)
	}

	// Create the API server
	server := api.NewServer(storageClient, billingService, builderManager, &api.ServerConfig{
		Port:       config.Port,
		ClinicName: config.ClinicName,
	})

	// Create HTTP server with graceful shutdown
	addr := fmt.Sprintf(":%s", config.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	// Channel to listen for shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Info("Starting http server on port %s...", config.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed: %v", err)
		}
	}()

	// Give server a moment to start, then log success
	time.Sleep(100 * time.Millisecond)
	log.Info("Started http server.")
	log.Info("DentalDesk %s server is ready!", version.GetVersion())

	// Wait for shutdown signal
	<-stop
	fmt.Println()
	log.Info("Server stopping...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error: %v.", err)
	} else {
		log.Info("Server stopped.")
	}

	scheduler.Stop()
	if err := builderManager.Close(shutdownCtx); err != nil {
		log.Error("Failed to flush website builder state: %v", err)
	}
}

// Config holds all server configuration
type Config struct {
	Port              string
	Environment       storage.Environment
	ClinicName        string
	Storage           string
	DatabaseURL       string
	SQLitePath        string
	CachePath         string
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Root            string
	MaxVersions       int
	MongoURI          string
	MongoDatabase     string
	TemplatesDir      string
	HistoryLimit      int
	OverdueSchedule   string
	Tenants           []string
}

// openStorage creates the primary document store named by config.Storage
func openStorage(config *Config) (storage.Storage, error) {
	switch config.Storage {
	case "sqlite", "":
		return storage.OpenSQLite(config.SQLitePath)
	case "postgres", "postgresql":
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("--database-url is required for postgres storage")
		}
		return storage.OpenPostgres(config.DatabaseURL)
	case "mysql":
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("--database-url is required for mysql storage")
		}
		return storage.OpenMySQL(config.DatabaseURL)
	case "s3":
		return storage.NewS3Storage(storage.S3Config{
			Endpoint:        config.S3Endpoint,
			Region:          config.S3Region,
			Bucket:          config.S3Bucket,
			AccessKeyID:     config.S3AccessKeyID,
			SecretAccessKey: config.S3SecretAccessKey,
			Root:            config.S3Root,
			MaxVersions:     config.MaxVersions,
		})
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "none":
		return storage.NewNoopStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", config.Storage)
	}
}

// parseEnvironment converts string to Environment type
func parseEnvironment(env string) storage.Environment {
	switch env {
	case "production", "prod":
		return storage.Production
	default:
		return storage.Development
	}
}

// parseMaxVersions reads a version count; "all" or a negative number means unlimited
func parseMaxVersions(s string) int {
	if strings.ToLower(s) == "all" {
		return -1
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return 10
}

// defaultCachePath places the builder cache in the user cache directory
func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "dentaldesk")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "builder-cache.db")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// redactURI hides credentials in a connection string
func redactURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return uri
	}
	return uri[:scheme+3] + "***" + uri[at:]
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
