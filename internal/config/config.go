package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendSheets    = "sheets"
	BackendFirestore = "firestore"
)

// Config holds everything the landing page and the admin CLI read from the environment.
type Config struct {
	App         AppConfig
	Sheets      SheetsConfig
	Firestore   FirestoreConfig
	Export      ExportConfig
	Credentials Credentials
	Backend     string
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	DebugMode          bool
	SessionIdleTimeout time.Duration
	PersistTimeout     time.Duration
}

type SheetsConfig struct {
	SheetID string
	Tab     string
}

type FirestoreConfig struct {
	ProjectID  string
	Collection string
}

type ExportConfig struct {
	Bucket string
}

// Credentials is a service account, either as a file on disk or as raw JSON assembled
// from discrete environment variables. Both empty means remote persistence is disabled.
type Credentials struct {
	File      string
	JSON      []byte
	ProjectID string
}

// Present reports whether any credential source was found.
func (c Credentials) Present() bool {
	return c.File != "" || len(c.JSON) > 0
}

// fileConfig mirrors the optional YAML config file.
type fileConfig struct {
	GoogleSheets struct {
		SheetID            string `yaml:"sheet_id"`
		Tab                string `yaml:"tab"`
		ServiceAccountFile string `yaml:"service_account_file"`
	} `yaml:"google_sheets"`
	Firestore struct {
		ProjectID  string `yaml:"project_id"`
		Collection string `yaml:"collection"`
	} `yaml:"firestore"`
	ExportBucket string `yaml:"export_bucket"`
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(GetEnv(key, ""))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// Load reads .env (if present), the optional YAML file and the process environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	fc, err := loadFile(GetEnv("CONFIG_FILE", "config.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: appConfig(),
		Sheets: SheetsConfig{
			SheetID: GetEnv("GOOGLE_SHEET_ID", fc.GoogleSheets.SheetID),
			Tab:     GetEnv("GOOGLE_SHEET_TAB", firstNonEmpty(fc.GoogleSheets.Tab, "Sheet1")),
		},
		Firestore: FirestoreConfig{
			ProjectID:  GetEnv("FIRESTORE_PROJECT_ID", fc.Firestore.ProjectID),
			Collection: GetEnv("FIRESTORE_COLLECTION", firstNonEmpty(fc.Firestore.Collection, "sessions")),
		},
		Export: ExportConfig{
			Bucket: GetEnv("EXPORT_BUCKET", fc.ExportBucket),
		},
		Backend: strings.ToLower(GetEnv("PERSISTENCE_BACKEND", BackendSheets)),
	}

	creds, err := loadCredentials(fc)
	if err != nil {
		return nil, err
	}
	cfg.Credentials = creds
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = creds.ProjectID
	}

	switch cfg.Backend {
	case BackendSheets, BackendFirestore:
	default:
		return nil, fmt.Errorf("PERSISTENCE_BACKEND must be %q or %q, got %q", BackendSheets, BackendFirestore, cfg.Backend)
	}
	return cfg, nil
}

// Default is the local-only configuration: process settings from the environment and no
// remote backend. It is what the landing page runs on when Load fails.
func Default() *Config {
	return &Config{
		App:       appConfig(),
		Sheets:    SheetsConfig{Tab: "Sheet1"},
		Firestore: FirestoreConfig{Collection: "sessions"},
		Backend:   BackendSheets,
	}
}

func appConfig() AppConfig {
	return AppConfig{
		Port:               GetEnv("PORT", "8080"),
		Environment:        GetEnv("GO_ENV", "development"),
		LogFilePath:        GetEnv("LOG_FILE_PATH", ""),
		DebugMode:          getEnvAsBool("DEBUG_MODE", false),
		SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		PersistTimeout:     getEnvAsDuration("PERSIST_TIMEOUT", 5*time.Second),
	}
}

// RemoteEnabled reports whether the configured backend has what it needs to connect.
func (c *Config) RemoteEnabled() bool {
	if !c.Credentials.Present() {
		return false
	}
	if c.Backend == BackendFirestore {
		return c.Firestore.ProjectID != ""
	}
	return c.Sheets.SheetID != ""
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return fc, nil
}

// loadCredentials resolves the service account in priority order: discrete environment
// variables, then a credentials file, then the file named in the YAML config.
func loadCredentials(fc fileConfig) (Credentials, error) {
	if projectID := GetEnv("GOOGLE_PROJECT_ID", ""); projectID != "" {
		raw, err := serviceAccountJSON(projectID)
		if err != nil {
			return Credentials{}, err
		}
		return Credentials{JSON: raw, ProjectID: projectID}, nil
	}

	for _, path := range []string{GetEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"), fc.GoogleSheets.ServiceAccountFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return Credentials{File: path, ProjectID: projectIDFromFile(path)}, nil
		}
	}
	return Credentials{}, nil
}

func serviceAccountJSON(projectID string) ([]byte, error) {
	clientEmail := GetEnv("GOOGLE_CLIENT_EMAIL", "")
	info := map[string]string{
		"type":                        "service_account",
		"project_id":                  projectID,
		"private_key_id":              GetEnv("GOOGLE_PRIVATE_KEY_ID", ""),
		"private_key":                 strings.ReplaceAll(GetEnv("GOOGLE_PRIVATE_KEY", ""), `\n`, "\n"),
		"client_email":                clientEmail,
		"client_id":                   GetEnv("GOOGLE_CLIENT_ID", ""),
		"auth_uri":                    "https://accounts.google.com/o/oauth2/auth",
		"token_uri":                   "https://oauth2.googleapis.com/token",
		"auth_provider_x509_cert_url": "https://www.googleapis.com/oauth2/v1/certs",
		"client_x509_cert_url":        "https://www.googleapis.com/robot/v1/metadata/x509/" + strings.ReplaceAll(clientEmail, "@", "%40"),
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode service account: %w", err)
	}
	return raw, nil
}

func projectIDFromFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var sa struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &sa); err != nil {
		return ""
	}
	return sa.ProjectID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
