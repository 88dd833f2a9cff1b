package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8082 {
		t.Errorf("Expected default port 8082, got %d", cfg.Server.Port)
	}
	if cfg.Currency != "USD" {
		t.Errorf("Expected default currency USD, got %s", cfg.Currency)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("Expected default broker localhost:9092, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ORDER_CURRENCY", "CNY")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("FEATURE_ORDER_CACHING", "false")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Currency != "CNY" {
		t.Errorf("Expected currency CNY, got %s", cfg.Currency)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Features.EnableOrderCaching {
		t.Error("Expected order caching disabled")
	}
}

func TestGatewayConfigured(t *testing.T) {
	if (StripeConfig{}).Configured() {
		t.Error("Empty Stripe config must not report configured")
	}
	if !(StripeConfig{SecretKey: "sk", WebhookSecret: "whsec"}).Configured() {
		t.Error("Stripe config with both secrets must report configured")
	}
	if (StripeConfig{SecretKey: "sk"}).Configured() {
		t.Error("Stripe config without webhook secret must not report configured")
	}

	if (PayPalConfig{ClientID: "id"}).Configured() {
		t.Error("PayPal config without secret must not report configured")
	}
	if !(PayPalConfig{ClientID: "id", Secret: "s"}).Configured() {
		t.Error("PayPal config with credentials must report configured")
	}

	if (WeChatConfig{AppID: "app", MchID: "mch"}).Configured() {
		t.Error("WeChat config without API key must not report configured")
	}
	if !(WeChatConfig{AppID: "app", MchID: "mch", APIKey: "key"}).Configured() {
		t.Error("WeChat config with credentials must report configured")
	}

	if (AlipayConfig{AppID: "app", PrivateKey: "priv"}).Configured() {
		t.Error("Alipay config without platform key must not report configured")
	}
	if !(AlipayConfig{AppID: "app", PrivateKey: "priv", AlipayPublicKey: "pub"}).Configured() {
		t.Error("Alipay config with keys must report configured")
	}
}

func TestDatabaseConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Name: "orders", SSLMode: "disable",
	}
	want := "host=db port=5432 user=u password=p dbname=orders sslmode=disable"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
