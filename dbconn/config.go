package dbconn

import (
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config carries everything needed to reach the database. Values come from
// the environment via LoadConfig; tests construct it directly.
type Config struct {
	Driver       string
	Host         string
	Port         string
	Database     string
	Username     string
	Password     string
	Charset      string
	PoolSize     int
	IgnoreTables []string
}

// LoadConfig reads the recognized DB_* environment keys with their defaults.
// When the process is not running inside a container, DB_CLI_HOST and
// DB_CLI_PORT override host and port, since the in-container hostname is
// typically unreachable from the host machine.
func LoadConfig() Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_DATABASE", "semitexa")
	v.SetDefault("DB_USERNAME", "root")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_CHARSET", "utf8mb4")
	v.SetDefault("DB_POOL_SIZE", 10)

	cfg := Config{
		Driver:   v.GetString("DB_DRIVER"),
		Host:     v.GetString("DB_HOST"),
		Port:     v.GetString("DB_PORT"),
		Database: v.GetString("DB_DATABASE"),
		Username: v.GetString("DB_USERNAME"),
		Password: v.GetString("DB_PASSWORD"),
		Charset:  v.GetString("DB_CHARSET"),
		PoolSize: v.GetInt("DB_POOL_SIZE"),
	}
	if !runningInContainer() {
		if h := v.GetString("DB_CLI_HOST"); h != "" {
			cfg.Host = h
		}
		if p := v.GetString("DB_CLI_PORT"); p != "" {
			cfg.Port = p
		}
	}
	if raw := v.GetString("ORM_IGNORE_TABLES"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.IgnoreTables = append(cfg.IgnoreTables, name)
			}
		}
	}
	return cfg
}

// IgnoreSet returns the ignored table names as a set.
func (c Config) IgnoreSet() map[string]bool {
	set := make(map[string]bool, len(c.IgnoreTables))
	for _, name := range c.IgnoreTables {
		set[name] = true
	}
	return set
}

// DSN builds the go-sql-driver data source name for this configuration.
func (c Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Host + ":" + c.Port
	mc.DBName = c.Database
	mc.ParseTime = false
	mc.InterpolateParams = false
	if c.Charset != "" {
		mc.Params = map[string]string{"charset": c.Charset}
	}
	return mc.FormatDSN()
}

func runningInContainer() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}
