package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RESERPIX/authstore/internal/models"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Security SecurityConfig `mapstructure:"security"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type StorageConfig struct {
	DataDir        string `mapstructure:"data_dir"`
	Fsync          bool   `mapstructure:"fsync"`
	SecondaryIndex bool   `mapstructure:"secondary_index"`
}

type SecurityConfig struct {
	BCryptCost int `mapstructure:"bcrypt_cost"`
}

// AuthConfig значения настроек по умолчанию, пока settings.json не записан
type AuthConfig struct {
	PasswordMinLength    int  `mapstructure:"password_min_length"`
	RequireUppercase     bool `mapstructure:"require_uppercase"`
	RequireLowercase     bool `mapstructure:"require_lowercase"`
	RequireDigit         bool `mapstructure:"require_digit"`
	RequireSpecial       bool `mapstructure:"require_special"`
	TempPasswordTTLHours int  `mapstructure:"temp_password_ttl_hours"`
	SessionTTLHours      int  `mapstructure:"session_ttl_hours"`
	MaxLoginAttempts     int  `mapstructure:"max_login_attempts"`
	LockoutMinutes       int  `mapstructure:"lockout_minutes"`
	InviteMaxUses        int  `mapstructure:"invite_max_uses"`
	InviteTTLHours       int  `mapstructure:"invite_ttl_hours"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Load собирает конфигурацию: значения по умолчанию, config.yaml,
// переменные окружения AUTHSTORE_*, затем флаги командной строки.
// flags может быть nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// Настройка значений по умолчанию
	setDefaults(v)

	// storage.data_dir -> AUTHSTORE_STORAGE_DATA_DIR
	v.SetEnvPrefix("authstore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if path, ok := configFileFlag(flags); ok {
		v.SetConfigFile(path)
	}

	// Чтение файла конфигурации
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// flagKeys соответствие флагов CLI ключам конфигурации
var flagKeys = map[string]string{
	"data-dir":        "storage.data_dir",
	"fsync":           "storage.fsync",
	"secondary-index": "storage.secondary_index",
	"bcrypt-cost":     "security.bcrypt_cost",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
}

// RegisterFlags добавляет общие флаги в набор
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to config.yaml")
	flags.String("data-dir", "", "data directory of the store")
	flags.Bool("fsync", true, "fsync files before rename")
	flags.Bool("secondary-index", false, "build in-memory lookup index at startup")
	flags.Int("bcrypt-cost", 0, "bcrypt cost for password hashes")
	flags.String("log-level", "", "debug, info, warn, error")
	flags.String("log-format", "", "json or text")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		// Не заданный явно флаг не должен перекрывать файл и окружение
		if !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func configFileFlag(flags *pflag.FlagSet) (string, bool) {
	if flags == nil {
		return "", false
	}
	path, err := flags.GetString("config")
	if err != nil || path == "" {
		return "", false
	}
	return path, true
}

func (c *Config) validate() error {
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir must not be empty")
	}
	if c.Security.BCryptCost < 4 || c.Security.BCryptCost > 31 {
		return fmt.Errorf("security.bcrypt_cost out of range: %d", c.Security.BCryptCost)
	}
	return nil
}

// DefaultSettings настройки аутентификации из секции auth
func (c *Config) DefaultSettings() models.Settings {
	return models.Settings{
		Password: models.PasswordPolicy{
			MinLength:            c.Auth.PasswordMinLength,
			RequireUppercase:     c.Auth.RequireUppercase,
			RequireLowercase:     c.Auth.RequireLowercase,
			RequireDigit:         c.Auth.RequireDigit,
			RequireSpecial:       c.Auth.RequireSpecial,
			TempPasswordTTLHours: c.Auth.TempPasswordTTLHours,
		},
		Session: models.SessionPolicy{
			SessionTTLHours: c.Auth.SessionTTLHours,
		},
		RateLimit: models.RateLimits{
			MaxLoginAttempts: c.Auth.MaxLoginAttempts,
			LockoutMinutes:   c.Auth.LockoutMinutes,
		},
		Invite: models.InvitePolicy{
			DefaultMaxUses:  c.Auth.InviteMaxUses,
			DefaultTTLHours: c.Auth.InviteTTLHours,
		},
	}
}

func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.fsync", true)
	v.SetDefault("storage.secondary_index", false)

	// Security defaults
	v.SetDefault("security.bcrypt_cost", 12)

	// Auth defaults
	defaults := models.DefaultSettings()
	v.SetDefault("auth.password_min_length", defaults.Password.MinLength)
	v.SetDefault("auth.require_uppercase", defaults.Password.RequireUppercase)
	v.SetDefault("auth.require_lowercase", defaults.Password.RequireLowercase)
	v.SetDefault("auth.require_digit", defaults.Password.RequireDigit)
	v.SetDefault("auth.require_special", defaults.Password.RequireSpecial)
	v.SetDefault("auth.temp_password_ttl_hours", defaults.Password.TempPasswordTTLHours)
	v.SetDefault("auth.session_ttl_hours", defaults.Session.SessionTTLHours)
	v.SetDefault("auth.max_login_attempts", defaults.RateLimit.MaxLoginAttempts)
	v.SetDefault("auth.lockout_minutes", defaults.RateLimit.LockoutMinutes)
	v.SetDefault("auth.invite_max_uses", defaults.Invite.DefaultMaxUses)
	v.SetDefault("auth.invite_ttl_hours", defaults.Invite.DefaultTTLHours)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
