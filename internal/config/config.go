package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server              ServerConfig
	Database            DatabaseConfig
	Redis               RedisConfig
	Kafka               KafkaConfig
	UserService         ServiceConfig
	NotificationService ServiceConfig
	Currency            string
	Stripe              StripeConfig
	PayPal              PayPalConfig
	WeChat              WeChatConfig
	Alipay              AlipayConfig
	Features            FeatureFlags
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	ConsumerGroup string
}

type ServiceConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// StripeConfig holds card-checkout credentials.
type StripeConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// Configured reports whether the adapter can talk to Stripe.
func (c StripeConfig) Configured() bool {
	return c.SecretKey != "" && c.WebhookSecret != ""
}

// PayPalConfig holds redirect-approval flow credentials.
type PayPalConfig struct {
	BaseURL   string
	ClientID  string
	Secret    string
	WebhookID string
	Timeout   time.Duration
}

func (c PayPalConfig) Configured() bool {
	return c.ClientID != "" && c.Secret != ""
}

// WeChatConfig holds Native (QR) pay credentials. APIKey signs both outbound
// requests and inbound notifications.
type WeChatConfig struct {
	BaseURL   string
	AppID     string
	MchID     string
	APIKey    string
	NotifyURL string
	Timeout   time.Duration
}

func (c WeChatConfig) Configured() bool {
	return c.AppID != "" && c.MchID != "" && c.APIKey != ""
}

// AlipayConfig holds QR precreate credentials. PrivateKey signs outbound
// requests; AlipayPublicKey verifies inbound notifications (RSA2).
type AlipayConfig struct {
	BaseURL         string
	AppID           string
	PrivateKey      string
	AlipayPublicKey string
	NotifyURL       string
	Timeout         time.Duration
}

func (c AlipayConfig) Configured() bool {
	return c.AppID != "" && c.PrivateKey != "" && c.AlipayPublicKey != ""
}

type FeatureFlags struct {
	EnableOrderCaching bool
	EnableOrderEvents  bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8082),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "craftlane"),
			Password:     getEnvString("DB_PASSWORD", "craftlane"),
			Name:         getEnvString("DB_NAME", "craftlane_orders"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_TTL", 300)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnvString("KAFKA_BROKERS", "localhost:9092"), ","),
			OrdersTopic:   getEnvString("KAFKA_ORDERS_TOPIC", "craftlane.orders"),
			ConsumerGroup: getEnvString("KAFKA_CONSUMER_GROUP", "orders-service"),
		},
		UserService: ServiceConfig{
			BaseURL: getEnvString("USER_SERVICE_URL", "http://localhost:8081"),
			APIKey:  getEnvString("USER_SERVICE_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("USER_SERVICE_TIMEOUT", 10)) * time.Second,
		},
		NotificationService: ServiceConfig{
			BaseURL: getEnvString("NOTIFICATION_SERVICE_URL", "http://localhost:8084"),
			APIKey:  getEnvString("NOTIFICATION_SERVICE_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("NOTIFICATION_SERVICE_TIMEOUT", 10)) * time.Second,
		},
		Currency: getEnvString("ORDER_CURRENCY", "USD"),
		Stripe: StripeConfig{
			BaseURL:       getEnvString("STRIPE_BASE_URL", "https://api.stripe.com"),
			SecretKey:     getEnvString("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnvString("STRIPE_WEBHOOK_SECRET", ""),
			Timeout:       time.Duration(getEnvInt("STRIPE_TIMEOUT", 30)) * time.Second,
		},
		PayPal: PayPalConfig{
			BaseURL:   getEnvString("PAYPAL_BASE_URL", "https://api-m.paypal.com"),
			ClientID:  getEnvString("PAYPAL_CLIENT_ID", ""),
			Secret:    getEnvString("PAYPAL_SECRET", ""),
			WebhookID: getEnvString("PAYPAL_WEBHOOK_ID", ""),
			Timeout:   time.Duration(getEnvInt("PAYPAL_TIMEOUT", 30)) * time.Second,
		},
		WeChat: WeChatConfig{
			BaseURL:   getEnvString("WECHAT_BASE_URL", "https://api.mch.weixin.qq.com"),
			AppID:     getEnvString("WECHAT_APP_ID", ""),
			MchID:     getEnvString("WECHAT_MCH_ID", ""),
			APIKey:    getEnvString("WECHAT_API_KEY", ""),
			NotifyURL: getEnvString("WECHAT_NOTIFY_URL", ""),
			Timeout:   time.Duration(getEnvInt("WECHAT_TIMEOUT", 30)) * time.Second,
		},
		Alipay: AlipayConfig{
			BaseURL:         getEnvString("ALIPAY_BASE_URL", "https://openapi.alipay.com/gateway.do"),
			AppID:           getEnvString("ALIPAY_APP_ID", ""),
			PrivateKey:      getEnvString("ALIPAY_PRIVATE_KEY", ""),
			AlipayPublicKey: getEnvString("ALIPAY_PUBLIC_KEY", ""),
			NotifyURL:       getEnvString("ALIPAY_NOTIFY_URL", ""),
			Timeout:         time.Duration(getEnvInt("ALIPAY_TIMEOUT", 30)) * time.Second,
		},
		Features: FeatureFlags{
			EnableOrderCaching: getEnvBool("FEATURE_ORDER_CACHING", true),
			EnableOrderEvents:  getEnvBool("FEATURE_ORDER_EVENTS", true),
		},
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
