package core

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jcelliott/lumber"
	"github.com/joho/godotenv"
	"github.com/thoas/go-funk"
	"github.com/xhit/go-str2duration/v2"
)

const (
	DefaultCommandPrefix   = "!"
	DefaultCooldown        = 2 * time.Second
	DefaultUserRateLimit   = 10
	DefaultThreadRateLimit = 20
	DefaultSendRate        = 5.0
)

// Built-in per-category cooldowns. Config entries override individual categories.
var DefaultCategoryCooldowns = map[string]time.Duration{
	"admin":   5 * time.Second,
	"economy": 3 * time.Second,
	"game":    2 * time.Second,
	"utility": 1 * time.Second,
	"fun":     1 * time.Second,
}

type jsonData struct {
	Development       bool
	AuthToken         string
	CommandPrefix     string
	Database          string
	OwnerIds          []string
	DefaultCooldown   string
	CategoryCooldowns map[string]string
	UserRateLimit     *int
	ThreadRateLimit   *int
	HandlerTimeout    string
	StateBackend      string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	StatusAddr        string
	SendRate          float64
	LogFile           string
}

type SettingsStorage struct {
	data              jsonData
	defaultCooldown   time.Duration
	handlerTimeout    time.Duration
	categoryCooldowns map[string]time.Duration
}

var Settings = SettingsStorage{}

// Load the settings from a json file, apply .env overrides and stuff it into Settings.
func LoadSettings(settingsfile string) {
	if err := Settings.Load(settingsfile); err != nil {
		LogFatal("Failed to load configuration: ", err)
	}
	if !Settings.IsDevelopment() {
		SetLogLevel(lumber.INFO)
	} else {
		LogDebug("Loaded config successfully from ", settingsfile)
	}
	if file := Settings.LogFile(); file != "" {
		if err := LogToFile(file); err != nil {
			LogError(err)
		}
	}
}

// Load replaces the stored settings with the contents of settingsfile.
func (s *SettingsStorage) Load(settingsfile string) error {
	file, err := os.Open(settingsfile)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var data jsonData
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	return s.apply(data)
}

// LoadJSON is Load for an in-memory document.
func (s *SettingsStorage) LoadJSON(raw []byte) error {
	var data jsonData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	return s.apply(data)
}

func (s *SettingsStorage) apply(data jsonData) error {
	// A missing .env is fine, values may already be in the environment.
	_ = godotenv.Load()
	overrideFromEnv(&data)

	defaultCooldown := DefaultCooldown
	if data.DefaultCooldown != "" {
		d, err := parseDuration("DefaultCooldown", data.DefaultCooldown)
		if err != nil {
			return err
		}
		defaultCooldown = d
	}

	var handlerTimeout time.Duration
	if data.HandlerTimeout != "" {
		d, err := parseDuration("HandlerTimeout", data.HandlerTimeout)
		if err != nil {
			return err
		}
		handlerTimeout = d
	}

	categories := make(map[string]time.Duration, len(DefaultCategoryCooldowns))
	for name, d := range DefaultCategoryCooldowns {
		categories[name] = d
	}
	for name, raw := range data.CategoryCooldowns {
		d, err := parseDuration("CategoryCooldowns."+name, raw)
		if err != nil {
			return err
		}
		name = strings.ToLower(name)
		if _, known := DefaultCategoryCooldowns[name]; !known {
			LogWarnF("Cooldown configured for unknown category %q", name)
		} else if DefaultCategoryCooldowns[name] != d {
			LogInfoF("Category %q cooldown overridden: %s -> %s", name, DefaultCategoryCooldowns[name], d)
		}
		categories[name] = d
	}

	switch data.StateBackend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unknown StateBackend %q (expected memory or redis)", data.StateBackend)
	}
	if data.StateBackend == "redis" && data.RedisAddr == "" {
		return fmt.Errorf("StateBackend redis requires RedisAddr")
	}

	data.OwnerIds = funk.UniqString(funk.FilterString(data.OwnerIds, func(id string) bool {
		return strings.TrimSpace(id) != ""
	}))

	s.data = data
	s.defaultCooldown = defaultCooldown
	s.handlerTimeout = handlerTimeout
	s.categoryCooldowns = categories
	return nil
}

func overrideFromEnv(data *jsonData) {
	if v := os.Getenv("THREADBOT_TOKEN"); v != "" {
		data.AuthToken = v
	}
	if v := os.Getenv("THREADBOT_PREFIX"); v != "" {
		data.CommandPrefix = v
	}
	if v := os.Getenv("THREADBOT_DATABASE"); v != "" {
		data.Database = v
	}
	if v := os.Getenv("THREADBOT_REDIS_ADDR"); v != "" {
		data.RedisAddr = v
	}
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid duration for %s: must not be negative", key)
	}
	return d, nil
}

// Get the bot auth tooken
func (s *SettingsStorage) AuthToken() string {
	return s.data.AuthToken
}

// Get the prefix used for bot commands
func (s *SettingsStorage) CommandPrefix() string {
	if s.data.CommandPrefix == "" {
		return DefaultCommandPrefix
	}
	return s.data.CommandPrefix
}

// Get whether or not we're running in Development mode.
func (s *SettingsStorage) IsDevelopment() bool {
	return s.data.Development
}

// Path of the sqlite database
func (s *SettingsStorage) Database() string {
	if s.data.Database == "" {
		return "threadbot.db"
	}
	return s.data.Database
}

func (s *SettingsStorage) OwnerIds() []string {
	return s.data.OwnerIds
}

func (s *SettingsStorage) IsOwner(userId string) bool {
	return funk.ContainsString(s.data.OwnerIds, userId)
}

func (s *SettingsStorage) DefaultCooldown() time.Duration {
	if s.categoryCooldowns == nil {
		return DefaultCooldown
	}
	return s.defaultCooldown
}

// Effective per-category cooldown table (built-in merged with config).
func (s *SettingsStorage) CategoryCooldowns() map[string]time.Duration {
	out := make(map[string]time.Duration)
	src := s.categoryCooldowns
	if src == nil {
		src = DefaultCategoryCooldowns
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Per-minute command allowance for a single user. Zero disables the limit.
func (s *SettingsStorage) UserRateLimit() int {
	if s.data.UserRateLimit == nil {
		return DefaultUserRateLimit
	}
	return *s.data.UserRateLimit
}

// Per-minute message allowance for a whole thread. Zero disables the limit.
func (s *SettingsStorage) ThreadRateLimit() int {
	if s.data.ThreadRateLimit == nil {
		return DefaultThreadRateLimit
	}
	return *s.data.ThreadRateLimit
}

// Upper bound for a single handler run, zero means unbounded.
func (s *SettingsStorage) HandlerTimeout() time.Duration {
	return s.handlerTimeout
}

func (s *SettingsStorage) StateBackend() string {
	if s.data.StateBackend == "" {
		return "memory"
	}
	return s.data.StateBackend
}

func (s *SettingsStorage) RedisAddr() string {
	return s.data.RedisAddr
}

func (s *SettingsStorage) RedisPassword() string {
	return s.data.RedisPassword
}

func (s *SettingsStorage) RedisDB() int {
	return s.data.RedisDB
}

// Listen address for the status server, empty disables it.
func (s *SettingsStorage) StatusAddr() string {
	return s.data.StatusAddr
}

// Outbound messages per second.
func (s *SettingsStorage) SendRate() float64 {
	if s.data.SendRate <= 0 {
		return DefaultSendRate
	}
	return s.data.SendRate
}

func (s *SettingsStorage) LogFile() string {
	return s.data.LogFile
}
