// Package config defines the configuration contract and handles loading and validating environment configuration.
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
	KeyHDEURL              = "HDE_URL"
	KeyHDEEmail            = "HDE_EMAIL"
	KeyHDEAPIKey           = "HDE_API_KEY"
	KeyHDETypeFieldID      = "HDE_FIELD_TYPE_ID"
	KeyHDEInitiatedFieldID = "HDE_FIELD_INITIATED_ID"
	KeyWAURL               = "WA_API_URL"
	KeyWAInstanceID        = "WA_INSTANCE_ID"
	KeyWAToken             = "WA_TOKEN"
	KeyWANamespace         = "WA_NAMESPACE"
	KeyWALangCode          = "WA_LANG_CODE"
	KeyHTTPTimeout         = "HTTP_TIMEOUT"
	KeyVariantDelay        = "VARIANT_DELAY"
	KeyContactDelay        = "CONTACT_DELAY"
	KeyMongoURI            = "MONGO_URI"
	KeyMongoDB             = "MONGO_DB"
	KeyTelegramToken       = "TELEGRAM_TOKEN"
	KeyTelegramReportChat  = "TELEGRAM_REPORT_CHAT"
	KeyAppEnv              = "APP_ENV"
	KeyLogLevel            = "LOG_LEVEL"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv              = EnvProduction
	DefaultLogLevel            = "info"
	DefaultHDEURL              = "https://qlean.helpdeskeddy.com/api/v2"
	DefaultHDETypeFieldID      = 33
	DefaultHDEInitiatedFieldID = 43
	DefaultWAURL               = "https://api.1msg.io"
	DefaultWANamespace         = "49276b64_15e7_414d_8f35_6ab04bcaa5b1"
	DefaultWALangCode          = "ru"
	DefaultHTTPTimeout         = 15 * time.Second
	DefaultVariantDelay        = 100 * time.Millisecond
	DefaultContactDelay        = 500 * time.Millisecond
	DefaultMongoDB             = "hde_orchestrator"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the orchestrator must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the orchestrator.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyHDEURL,
		Example:     DefaultHDEURL,
		Default:     DefaultHDEURL,
		Description: "HelpDeskEddy API v2 base URL.",
	},
	{
		Key:         KeyHDEEmail,
		Example:     "agent@example.com",
		Required:    true,
		Description: "HelpDeskEddy agent email used for basic auth.",
	},
	{
		Key:         KeyHDEAPIKey,
		Example:     "hde-api-key",
		Required:    true,
		Description: "HelpDeskEddy API key used for basic auth.",
	},
	{
		Key:         KeyHDETypeFieldID,
		Example:     strconv.Itoa(DefaultHDETypeFieldID),
		Default:     strconv.Itoa(DefaultHDETypeFieldID),
		Description: "Custom field id receiving the campaign ticket type.",
	},
	{
		Key:         KeyHDEInitiatedFieldID,
		Example:     strconv.Itoa(DefaultHDEInitiatedFieldID),
		Default:     strconv.Itoa(DefaultHDEInitiatedFieldID),
		Description: "Custom field id flagged with 1 when the campaign initiated the dialog.",
	},
	{
		Key:         KeyWAURL,
		Example:     DefaultWAURL,
		Default:     DefaultWAURL,
		Description: "Messaging gateway base URL.",
	},
	{
		Key:         KeyWAInstanceID,
		Example:     "12345",
		Required:    true,
		Description: "Messaging gateway instance id.",
	},
	{
		Key:         KeyWAToken,
		Example:     "wa-token",
		Required:    true,
		Description: "Messaging gateway access token.",
	},
	{
		Key:         KeyWANamespace,
		Example:     DefaultWANamespace,
		Default:     DefaultWANamespace,
		Description: "Template namespace sent with every template message.",
	},
	{
		Key:         KeyWALangCode,
		Example:     DefaultWALangCode,
		Default:     DefaultWALangCode,
		Description: "Template language code.",
	},
	{
		Key:         KeyHTTPTimeout,
		Example:     DefaultHTTPTimeout.String(),
		Default:     DefaultHTTPTimeout.String(),
		Description: "Timeout applied to every outbound HTTP request.",
	},
	{
		Key:         KeyVariantDelay,
		Example:     DefaultVariantDelay.String(),
		Default:     DefaultVariantDelay.String(),
		Description: "Pause between directory searches for the phone variants of one contact.",
	},
	{
		Key:         KeyContactDelay,
		Example:     DefaultContactDelay.String(),
		Default:     DefaultContactDelay.String(),
		Description: "Pause after every processed contact.",
		Notes:       "Paces the batch against external rate limits.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string for the report archive.",
		Notes:       "Archive is disabled when unset.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDB,
		Default:     DefaultMongoDB,
		Description: "MongoDB database name for the report archive.",
	},
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Description: "Telegram Bot Token used to deliver the finished report to operators.",
		Notes:       "Requires " + KeyTelegramReportChat + ".",
	},
	{
		Key:         KeyTelegramReportChat,
		Example:     "-1001234567890",
		Description: "Telegram chat id receiving the finished report.",
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
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	HDEURL              string
	HDEEmail            string
	HDEAPIKey           string
	HDETypeFieldID      int
	HDEInitiatedFieldID int
	WAURL               string
	WAInstanceID        string
	WAToken             string
	WANamespace         string
	WALangCode          string
	HTTPTimeout         time.Duration
	VariantDelay        time.Duration
	ContactDelay        time.Duration
	MongoURI            string
	MongoDB             string
	TelegramToken       string
	TelegramReportChat  int64
	AppEnv              string
	LogLevel            string
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
		AppEnv:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		HDEURL:        strings.TrimRight(firstNonEmpty(os.Getenv(KeyHDEURL), DefaultHDEURL), "/"),
		HDEEmail:      strings.TrimSpace(os.Getenv(KeyHDEEmail)),
		HDEAPIKey:     strings.TrimSpace(os.Getenv(KeyHDEAPIKey)),
		WAURL:         strings.TrimRight(firstNonEmpty(os.Getenv(KeyWAURL), DefaultWAURL), "/"),
		WAInstanceID:  strings.TrimSpace(os.Getenv(KeyWAInstanceID)),
		WAToken:       strings.TrimSpace(os.Getenv(KeyWAToken)),
		WANamespace:   firstNonEmpty(os.Getenv(KeyWANamespace), DefaultWANamespace),
		WALangCode:    firstNonEmpty(os.Getenv(KeyWALangCode), DefaultWALangCode),
		MongoURI:      strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:       firstNonEmpty(os.Getenv(KeyMongoDB), DefaultMongoDB),
		TelegramToken: strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		LogLevel:      firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.HDEEmail == "" {
		missing = append(missing, KeyHDEEmail)
	}
	if cfg.HDEAPIKey == "" {
		missing = append(missing, KeyHDEAPIKey)
	}
	if cfg.WAInstanceID == "" {
		missing = append(missing, KeyWAInstanceID)
	}
	if cfg.WAToken == "" {
		missing = append(missing, KeyWAToken)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	for key, raw := range map[string]string{KeyHDEURL: cfg.HDEURL, KeyWAURL: cfg.WAURL} {
		if err := validateHTTPURL(key, raw); err != nil {
			return Config{}, err
		}
	}

	if cfg.HDETypeFieldID, err = positiveIntEnv(KeyHDETypeFieldID, DefaultHDETypeFieldID); err != nil {
		return Config{}, err
	}
	if cfg.HDEInitiatedFieldID, err = positiveIntEnv(KeyHDEInitiatedFieldID, DefaultHDEInitiatedFieldID); err != nil {
		return Config{}, err
	}

	if cfg.HTTPTimeout, err = durationEnv(KeyHTTPTimeout, DefaultHTTPTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HTTPTimeout == 0 {
		return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPTimeout)
	}
	if cfg.VariantDelay, err = durationEnv(KeyVariantDelay, DefaultVariantDelay); err != nil {
		return Config{}, err
	}
	if cfg.ContactDelay, err = durationEnv(KeyContactDelay, DefaultContactDelay); err != nil {
		return Config{}, err
	}

	if cfg.MongoURI != "" {
		if !strings.HasPrefix(cfg.MongoURI, "mongodb://") && !strings.HasPrefix(cfg.MongoURI, "mongodb+srv://") {
			return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
		}
	}

	chatRaw := strings.TrimSpace(os.Getenv(KeyTelegramReportChat))
	if chatRaw != "" {
		chatID, parseErr := strconv.ParseInt(chatRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyTelegramReportChat, parseErr)
		}
		cfg.TelegramReportChat = chatID
	}
	if (cfg.TelegramToken == "") != (cfg.TelegramReportChat == 0) {
		return Config{}, fmt.Errorf("%s and %s must be set together", KeyTelegramToken, KeyTelegramReportChat)
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// ArchiveEnabled reports whether finished reports are stored in MongoDB.
func (c Config) ArchiveEnabled() bool {
	return c.MongoURI != ""
}

// NotifierEnabled reports whether finished reports are sent to Telegram.
func (c Config) NotifierEnabled() bool {
	return c.TelegramToken != "" && c.TelegramReportChat != 0
}

// FormatRedacted renders the configuration with secrets masked.
func FormatRedacted(c Config) string {
	lines := []string{
		"app_env: " + c.AppEnv,
		"log_level: " + c.LogLevel,
		"hde_url: " + c.HDEURL,
		"hde_email: " + c.HDEEmail,
		"hde_api_key: " + redactSecret(c.HDEAPIKey),
		"hde_field_type_id: " + strconv.Itoa(c.HDETypeFieldID),
		"hde_field_initiated_id: " + strconv.Itoa(c.HDEInitiatedFieldID),
		"wa_api_url: " + c.WAURL,
		"wa_instance_id: " + c.WAInstanceID,
		"wa_token: " + redactSecret(c.WAToken),
		"wa_namespace: " + c.WANamespace,
		"wa_lang_code: " + c.WALangCode,
		"http_timeout: " + c.HTTPTimeout.String(),
		"variant_delay: " + c.VariantDelay.String(),
		"contact_delay: " + c.ContactDelay.String(),
		"mongo_uri: " + redactURI(c.MongoURI),
		"mongo_db: " + c.MongoDB,
		"telegram_token: " + redactSecret(c.TelegramToken),
		"telegram_report_chat: " + strconv.FormatInt(c.TelegramReportChat, 10),
	}

	return strings.Join(lines, "\n")
}

func redactSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "redacted"
	}
	return value[:4] + "...redacted"
}

func redactURI(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "redacted"
	}
	parsed.User = nil

	return parsed.String()
}

func validateHTTPURL(key, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", key)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid %s: host is required", key)
	}
	return nil
}

func positiveIntEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return value, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}

	return value, nil
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
