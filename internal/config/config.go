package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config é a configuração imutável de um serviço. É carregada uma vez no main
// e repassada por valor para cada workflow.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Services      ServiceURLs         `mapstructure:"services"`
	Notifier      NotifierConfig      `mapstructure:"notifier"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Shipping      ShippingConfig      `mapstructure:"shipping"`
	Orders        OrdersConfig        `mapstructure:"orders"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"` // postgres | memory
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	MaxConns    int32  `mapstructure:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// DSN monta a URL de conexão no formato aceito por pgx e lib/pq
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	StatusTTL time.Duration `mapstructure:"status_ttl"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// ServiceURLs guarda as URLs base dos serviços colaboradores
type ServiceURLs struct {
	Orders    string `mapstructure:"orders"`
	Products  string `mapstructure:"products"`
	Customers string `mapstructure:"customers"`
}

type NotifierConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type CollaboratorsConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type GatewayConfig struct {
	SuccessRate     float64       `mapstructure:"success_rate"`
	ProcessingDelay time.Duration `mapstructure:"processing_delay"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type ShippingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig descreve uma transportadora: faixa de dias e URL de rastreio
type ProviderConfig struct {
	Name          string `mapstructure:"name"`
	EstimatedDays []int  `mapstructure:"estimated_days"`
	TrackingURL   string `mapstructure:"tracking_url"`
}

// DayRange devolve a faixa [min, max] de dias de entrega
func (p ProviderConfig) DayRange() (int, int) {
	if len(p.EstimatedDays) != 2 {
		return 3, 7
	}
	return p.EstimatedDays[0], p.EstimatedDays[1]
}

type OrdersConfig struct {
	RestoreInventoryOnCancel bool `mapstructure:"restore_inventory_on_cancel"`
	NumberAttempts           int  `mapstructure:"number_attempts"`
}

// serviceDefaults guarda o que muda de um serviço para outro
var serviceDefaults = map[string]struct {
	port   string
	dbName string
}{
	"orders-service":    {port: "8080", dbName: "orders_db"},
	"payments-service":  {port: "8081", dbName: "payments_db"},
	"shipments-service": {port: "8082", dbName: "shipments_db"},
}

// DefaultProviders devolve a tabela padrão de transportadoras
func DefaultProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"EXPRESS": {
			Name:          "Express Shipping",
			EstimatedDays: []int{1, 2},
			TrackingURL:   "https://track.example.com/express/",
		},
		"STANDARD": {
			Name:          "Standard Shipping",
			EstimatedDays: []int{3, 7},
			TrackingURL:   "https://track.example.com/standard/",
		},
		"ECONOMY": {
			Name:          "Economy Shipping",
			EstimatedDays: []int{5, 10},
			TrackingURL:   "https://track.example.com/economy/",
		},
	}
}

// Load carrega a configuração do serviço. O arquivo YAML é opcional; variáveis
// de ambiente (DATABASE_HOST, GATEWAY_SUCCESS_RATE, ...) têm precedência.
func Load(service string, configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v, service)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config failed: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config failed: %w", err)
	}

	cfg.Shipping.Providers = normalizeProviders(cfg.Shipping.Providers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	defaults, ok := serviceDefaults[service]
	if !ok {
		defaults = serviceDefaults["orders-service"]
	}

	v.SetDefault("app.name", service)
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.port", defaults.port)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "pass")
	v.SetDefault("database.name", defaults.dbName)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.status_ttl", 5*time.Minute)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")

	v.SetDefault("services.orders", "http://orders-service:8080")
	v.SetDefault("services.products", "http://product-service:8000")
	v.SetDefault("services.customers", "http://customer-service:8000")

	v.SetDefault("notifier.timeout", 3*time.Second)
	v.SetDefault("collaborators.timeout", 3*time.Second)

	v.SetDefault("gateway.success_rate", 0.9)
	v.SetDefault("gateway.processing_delay", 500*time.Millisecond)
	v.SetDefault("gateway.timeout", 5*time.Second)

	v.SetDefault("orders.restore_inventory_on_cancel", false)
	v.SetDefault("orders.number_attempts", 5)
}

// normalizeProviders põe as chaves em maiúsculas (viper devolve tudo em
// minúsculas) e completa com a tabela padrão
func normalizeProviders(in map[string]ProviderConfig) map[string]ProviderConfig {
	out := DefaultProviders()
	for code, provider := range in {
		out[strings.ToUpper(code)] = provider
	}
	return out
}

// Validate verifica os intervalos que os workflows assumem
func (c Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver)
	}
	if c.Gateway.SuccessRate < 0 || c.Gateway.SuccessRate > 1 {
		return fmt.Errorf("gateway.success_rate must be within [0, 1]")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	if c.Notifier.Timeout <= 0 {
		return fmt.Errorf("notifier.timeout must be positive")
	}
	if c.Collaborators.Timeout <= 0 {
		return fmt.Errorf("collaborators.timeout must be positive")
	}
	if c.Orders.NumberAttempts < 1 {
		return fmt.Errorf("orders.number_attempts must be at least 1")
	}
	for code, provider := range c.Shipping.Providers {
		if len(provider.EstimatedDays) != 2 {
			return fmt.Errorf("shipping.providers.%s.estimated_days must have two values", code)
		}
		minDays, maxDays := provider.DayRange()
		if minDays < 1 || minDays > maxDays {
			return fmt.Errorf("shipping.providers.%s.estimated_days must satisfy 1 <= min <= max", code)
		}
	}
	return nil
}
