// Package config defines the environment contract for the bot and loads and validates it.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken     = "TELEGRAM_TOKEN"
	KeyAdminChatID       = "ADMIN_CHAT_ID"
	KeyMongoURI          = "MONGO_URI"
	KeyMongoDB           = "MONGO_DB"
	KeyScriptURL         = "SCRIPT_URL"
	KeyAppEnv            = "APP_ENV"
	KeyLogLevel          = "LOG_LEVEL"
	KeyHTTPPort          = "HTTP_PORT"
	KeySMTPServer        = "SMTP_SERVER"
	KeySMTPPort          = "SMTP_PORT"
	KeySMTPUsername      = "SMTP_USERNAME"
	KeySMTPPassword      = "SMTP_PASSWORD"
	KeyFromEmail         = "FROM_EMAIL"
	KeyDefaultRecipients = "DEFAULT_RECIPIENTS"
	KeyCompanyName       = "COMPANY_NAME"
	KeyDefaultTeam       = "DEFAULT_TEAM"
	KeyWizardSessionTTL  = "WIZARD_SESSION_TTL"
	KeySessionStore      = "SESSION_STORE"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Allowed session store backends.
	SessionStoreMongo  = "mongo"
	SessionStoreMemory = "memory"

	// Defaults for optional settings.
	DefaultAppEnv       = EnvProduction
	DefaultLogLevel     = "info"
	DefaultHTTPPort     = 8080
	DefaultSMTPPort     = 587
	DefaultCompanyName  = "Truck Notification Service"
	DefaultTeam         = "Eldoret"
	DefaultSessionStore = SessionStoreMongo

	// Recommended database names by environment.
	DefaultMongoDBProd = "truck_bot"
	DefaultMongoDBDev  = "truck_bot_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyAdminChatID,
		Example:     "123456789",
		Required:    true,
		Description: "Telegram chat id that receives admin notices and holds the admin role.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyScriptURL,
		Example:     "https://script.google.com/macros/s/XXXX/exec",
		Required:    true,
		Description: "Spreadsheet backend endpoint used for truck lookups and new entries.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
	{
		Key:         KeySMTPServer,
		Example:     "smtp.gmail.com",
		Description: "SMTP host for report emails. Email is disabled when any SMTP field is missing.",
	},
	{
		Key:         KeySMTPPort,
		Example:     strconv.Itoa(DefaultSMTPPort),
		Default:     strconv.Itoa(DefaultSMTPPort),
		Description: "SMTP port.",
	},
	{
		Key:         KeySMTPUsername,
		Example:     "reports@example.com",
		Description: "SMTP username.",
	},
	{
		Key:         KeySMTPPassword,
		Example:     "app-password",
		Description: "SMTP password.",
	},
	{
		Key:         KeyFromEmail,
		Example:     "reports@example.com",
		Description: "Sender address for report emails.",
	},
	{
		Key:         KeyDefaultRecipients,
		Example:     "ops@example.com,depot@example.com",
		Description: "Comma separated addresses copied on every report email.",
	},
	{
		Key:         KeyCompanyName,
		Example:     DefaultCompanyName,
		Default:     DefaultCompanyName,
		Description: "Company name printed on report attachments.",
	},
	{
		Key:         KeyDefaultTeam,
		Example:     DefaultTeam,
		Default:     DefaultTeam,
		Description: "Response team used when a maintenance report has no team label.",
	},
	{
		Key:         KeyWizardSessionTTL,
		Example:     "2h",
		Default:     "0",
		Description: "Idle time after which a guided entry session is discarded.",
		Notes:       "0 keeps sessions until they are cancelled, submitted or the process restarts.",
	},
	{
		Key:         KeySessionStore,
		Example:     SessionStoreMongo + " / " + SessionStoreMemory,
		Default:     DefaultSessionStore,
		Description: "Where guided entry sessions are kept.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken     string
	AdminChatID       int64
	MongoURI          string
	MongoDB           string
	ScriptURL         string
	AppEnv            string
	LogLevel          string
	HTTPPort          int
	SMTPServer        string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	FromEmail         string
	DefaultRecipients []string
	CompanyName       string
	DefaultTeam       string
	WizardSessionTTL  time.Duration
	SessionStore      string
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:            firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:     strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		MongoURI:          strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:           strings.TrimSpace(os.Getenv(KeyMongoDB)),
		ScriptURL:         strings.TrimSpace(os.Getenv(KeyScriptURL)),
		LogLevel:          firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:          DefaultHTTPPort,
		SMTPServer:        strings.TrimSpace(os.Getenv(KeySMTPServer)),
		SMTPPort:          DefaultSMTPPort,
		SMTPUsername:      strings.TrimSpace(os.Getenv(KeySMTPUsername)),
		SMTPPassword:      os.Getenv(KeySMTPPassword),
		FromEmail:         strings.TrimSpace(os.Getenv(KeyFromEmail)),
		DefaultRecipients: splitList(os.Getenv(KeyDefaultRecipients)),
		CompanyName:       firstNonEmpty(os.Getenv(KeyCompanyName), DefaultCompanyName),
		DefaultTeam:       firstNonEmpty(os.Getenv(KeyDefaultTeam), DefaultTeam),
		SessionStore:      firstNonEmpty(strings.ToLower(os.Getenv(KeySessionStore)), DefaultSessionStore),
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	adminRaw := strings.TrimSpace(os.Getenv(KeyAdminChatID))
	if adminRaw == "" {
		missing = append(missing, KeyAdminChatID)
	} else {
		adminID, parseErr := strconv.ParseInt(adminRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyAdminChatID, parseErr)
		}
		cfg.AdminChatID = adminID
	}

	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}

	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if cfg.ScriptURL == "" {
		missing = append(missing, KeyScriptURL)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if err := validateMongoURI(cfg.MongoURI); err != nil {
		return Config{}, err
	}

	if err := validateScriptURL(cfg.ScriptURL); err != nil {
		return Config{}, err
	}

	if cfg.HTTPPort, err = parsePort(KeyHTTPPort, DefaultHTTPPort); err != nil {
		return Config{}, err
	}

	if cfg.SMTPPort, err = parsePort(KeySMTPPort, DefaultSMTPPort); err != nil {
		return Config{}, err
	}

	ttlRaw := strings.TrimSpace(os.Getenv(KeyWizardSessionTTL))
	if ttlRaw != "" && ttlRaw != "0" {
		ttl, parseErr := time.ParseDuration(ttlRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyWizardSessionTTL, parseErr)
		}
		if ttl < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", KeyWizardSessionTTL)
		}
		cfg.WizardSessionTTL = ttl
	}

	if cfg.SessionStore != SessionStoreMongo && cfg.SessionStore != SessionStoreMemory {
		return Config{}, fmt.Errorf("invalid %s: must be %q or %q", KeySessionStore, SessionStoreMongo, SessionStoreMemory)
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// SMTPEnabled reports whether every setting needed to send email is present.
func (c Config) SMTPEnabled() bool {
	return c.SMTPServer != "" && c.SMTPUsername != "" && c.SMTPPassword != "" && c.FromEmail != ""
}

// FormatRedacted renders the configuration with secrets masked, one key per line.
func FormatRedacted(c Config) string {
	ttl := "never"
	if c.WizardSessionTTL > 0 {
		ttl = c.WizardSessionTTL.String()
	}

	password := ""
	if c.SMTPPassword != "" {
		password = "redacted"
	}

	lines := []string{
		"telegram_token: " + maskToken(c.TelegramToken),
		"admin_chat_id: " + strconv.FormatInt(c.AdminChatID, 10),
		"mongo_uri: " + redactURI(c.MongoURI),
		"mongo_db: " + c.MongoDB,
		"script_url: " + c.ScriptURL,
		"app_env: " + c.AppEnv,
		"log_level: " + c.LogLevel,
		"http_port: " + strconv.Itoa(c.HTTPPort),
		"smtp_server: " + c.SMTPServer,
		"smtp_port: " + strconv.Itoa(c.SMTPPort),
		"smtp_username: " + c.SMTPUsername,
		"smtp_password: " + password,
		"from_email: " + c.FromEmail,
		"default_recipients: " + strings.Join(c.DefaultRecipients, ","),
		"company_name: " + c.CompanyName,
		"default_team: " + c.DefaultTeam,
		"wizard_session_ttl: " + ttl,
		"session_store: " + c.SessionStore,
	}

	return strings.Join(lines, "\n")
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "...redacted"
	}
	return token[:4] + "...redacted"
}

func redactURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func validateMongoURI(uri string) error {
	if strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://") {
		return nil
	}

	return fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
}

func validateScriptURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", KeyScriptURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must be an absolute http(s) URL", KeyScriptURL)
	}

	return nil
}

func parsePort(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if port <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return port, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
