package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Trading  TradingConfig
}

type ServerConfig struct {
	Port    string
	AppName string `mapstructure:"app_name"`
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	TimeZone    string
	TablePrefix string `mapstructure:"table_prefix"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TradingConfig 交易引擎参数
type TradingConfig struct {
	// 同时允许 ACTIVE 的网格策略数量（默认 1 即强制单例，<=0 表示不限制）
	MaxActiveGrid int `mapstructure:"max_active_grid"`
	// 同时允许 ACTIVE 的 DCA 策略数量（0 表示不限制）
	MaxActiveDCA int `mapstructure:"max_active_dca"`
	// 单例清理周期（秒）
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

func LoadConfig() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")        // 在当前目录中查找配置
	viper.AddConfigPath("./config") // 在 config 目录中查找配置

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("trading.max_active_grid", 1)
	viper.SetDefault("trading.max_active_dca", 0)
	viper.SetDefault("trading.sweep_interval_seconds", 60)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Error reading config file, %s", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	return &config
}
