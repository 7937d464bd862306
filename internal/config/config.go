// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Note store backends.
const (
	StoreSupabase = "supabase"
	StoreSQLite   = "sqlite"
)

// DefaultPort is used when PORT is unset or invalid.
const DefaultPort = 3001

// Config holds all application configuration.
type Config struct {
	Port            int                   `yaml:"port"`
	AllowedOrigins  []string              `yaml:"allowed_origins"`
	Log             LogConfig             `yaml:"log"`
	NoteStore       string                `yaml:"note_store"`
	Supabase        SupabaseConfig        `yaml:"supabase"`
	DBPath          string                `yaml:"db_path"`
	OpenAI          OpenAIConfig          `yaml:"openai"`
	Chat            ChatConfig            `yaml:"chat"`
	ConversationLog ConversationLogConfig `yaml:"conversation_log"`
}

// LogConfig controls process logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SupabaseConfig points at the auth and note backend.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	Key        string `yaml:"key"`
	JWTSecret  string `yaml:"jwt_secret"`
	NotesTable string `yaml:"notes_table"`
}

// OpenAIConfig configures the assistants backend.
type OpenAIConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	AssistantName   string        `yaml:"assistant_name"`
	RunPollInterval time.Duration `yaml:"run_poll_interval"`
}

// ChatConfig tunes the chat relay.
type ChatConfig struct {
	MaxGroundingChars int   `yaml:"max_grounding_chars"`
	MaxFrameBytes     int64 `yaml:"max_frame_bytes"`
	MessagesPerMinute int   `yaml:"messages_per_minute"`
	EnforceNoteOwner  bool  `yaml:"enforce_note_owner"`
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	GlobalEnabled bool   `yaml:"global_enabled"`
	GlobalPath    string `yaml:"global_path"`
	QueueSize     int    `yaml:"queue_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:           DefaultPort,
		AllowedOrigins: []string{"*"},
		Log:            LogConfig{Level: "info"},
		NoteStore:      StoreSupabase,
		Supabase:       SupabaseConfig{NotesTable: "notes"},
		DBPath:         "./data/notes.db",
		OpenAI: OpenAIConfig{
			Model:           "gpt-4o-mini",
			AssistantName:   "Note Assistant",
			RunPollInterval: 100 * time.Millisecond,
		},
		Chat: ChatConfig{
			MaxGroundingChars: 250000,
			MaxFrameBytes:     1 << 20,
		},
		ConversationLog: ConversationLogConfig{
			Dir:        "./data/logs/conversations",
			GlobalPath: "./data/logs/conversations/all.ndjson",
			QueueSize:  1000,
		},
	}
}

// Load reads and validates configuration.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Read builds configuration from defaults, the optional YAML file named by
// NOTECHAT_CONFIG and environment variables, in that order. It does not validate.
func Read() (*Config, error) {
	cfg := Default()
	if path := getEnv("NOTECHAT_CONFIG", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultPort
	}
	return cfg, nil
}

// mergeFile overlays a YAML file onto cfg. ${VAR} references are expanded.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvPort("PORT", c.Port)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)

	c.NoteStore = strings.ToLower(getEnv("NOTE_STORE", c.NoteStore))
	c.Supabase.URL = getEnv("SUPABASE_URL", c.Supabase.URL)
	c.Supabase.Key = getEnv("SUPABASE_KEY", c.Supabase.Key)
	c.Supabase.JWTSecret = getEnv("SUPABASE_JWT_SECRET", c.Supabase.JWTSecret)
	c.Supabase.NotesTable = getEnv("SUPABASE_NOTES_TABLE", c.Supabase.NotesTable)
	c.DBPath = getEnv("DB_PATH", c.DBPath)

	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Model = getEnv("OPENAI_MODEL", c.OpenAI.Model)
	c.OpenAI.AssistantName = getEnv("ASSISTANT_NAME", c.OpenAI.AssistantName)
	c.OpenAI.RunPollInterval = getEnvDuration("RUN_POLL_INTERVAL", c.OpenAI.RunPollInterval)

	c.Chat.MaxGroundingChars = getEnvInt("CHAT_MAX_GROUNDING_CHARS", c.Chat.MaxGroundingChars)
	c.Chat.MaxFrameBytes = int64(getEnvInt("CHAT_MAX_FRAME_BYTES", int(c.Chat.MaxFrameBytes)))
	c.Chat.MessagesPerMinute = getEnvInt("CHAT_MESSAGES_PER_MINUTE", c.Chat.MessagesPerMinute)
	c.Chat.EnforceNoteOwner = getEnvBool("CHAT_ENFORCE_NOTE_OWNER", c.Chat.EnforceNoteOwner)

	c.ConversationLog.Enabled = getEnvBool("CONVERSATION_LOG_ENABLED", c.ConversationLog.Enabled)
	c.ConversationLog.Dir = getEnv("CONVERSATION_LOG_DIR", c.ConversationLog.Dir)
	c.ConversationLog.GlobalEnabled = getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", c.ConversationLog.GlobalEnabled)
	c.ConversationLog.GlobalPath = getEnv("CONVERSATION_LOG_GLOBAL_PATH", c.ConversationLog.GlobalPath)
	c.ConversationLog.QueueSize = getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", c.ConversationLog.QueueSize)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	switch c.NoteStore {
	case StoreSupabase:
		if c.Supabase.URL == "" {
			return errors.New("SUPABASE_URL cannot be empty")
		}
		if c.Supabase.Key == "" {
			return errors.New("SUPABASE_KEY cannot be empty")
		}
	case StoreSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH cannot be empty")
		}
		if c.Supabase.JWTSecret == "" && (c.Supabase.URL == "" || c.Supabase.Key == "") {
			return errors.New("sqlite note store needs SUPABASE_JWT_SECRET or SUPABASE_URL and SUPABASE_KEY to verify tokens")
		}
	default:
		return fmt.Errorf("NOTE_STORE must be %q or %q, got %q", StoreSupabase, StoreSQLite, c.NoteStore)
	}
	if c.OpenAI.APIKey == "" {
		return errors.New("OPENAI_API_KEY cannot be empty")
	}
	if c.OpenAI.RunPollInterval <= 0 {
		return errors.New("RUN_POLL_INTERVAL must be > 0")
	}
	if c.Chat.MaxGroundingChars <= 0 {
		return errors.New("CHAT_MAX_GROUNDING_CHARS must be > 0")
	}
	if c.Chat.MaxFrameBytes <= 0 {
		return errors.New("CHAT_MAX_FRAME_BYTES must be > 0")
	}
	if c.Chat.MessagesPerMinute < 0 {
		return errors.New("CHAT_MESSAGES_PER_MINUTE cannot be negative")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return errors.New("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalEnabled && c.ConversationLog.GlobalPath == "" {
		return errors.New("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return errors.New("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// LocalAuth reports whether tokens are verified locally with the JWT secret
// instead of by the Supabase auth service.
func (c *Config) LocalAuth() bool {
	return c.Supabase.JWTSecret != ""
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or "" when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
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

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvPort falls back to DefaultPort, not to the current value, when the variable is set but invalid.
func getEnvPort(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 || n > 65535 {
		return DefaultPort
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
