package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.PaymentCurrency != "usd" {
		t.Errorf("expected default currency usd, got %s", cfg.PaymentCurrency)
	}
	if cfg.LLMProvider != "gemini" {
		t.Errorf("expected default llm provider gemini, got %s", cfg.LLMProvider)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected default session TTL 30m, got %s", cfg.SessionTTL)
	}
}

func TestPaymentsConfigured(t *testing.T) {
	cfg := &Config{}
	if cfg.PaymentsConfigured() {
		t.Fatal("expected payments unconfigured without secret key")
	}
	cfg.StripeSecretKey = "sk_test_123"
	if !cfg.PaymentsConfigured() {
		t.Fatal("expected payments configured with secret key")
	}
	cfg.StripeSecretKey = "   "
	if cfg.PaymentsConfigured() {
		t.Fatal("whitespace-only key should not count as configured")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_abc")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CMS_CACHE_TTL", "90s")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Port)
	}
	if cfg.StripeSecretKey != "sk_test_abc" {
		t.Errorf("expected stripe key override")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("expected trimmed origin list, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.CMSCacheTTL != 90*time.Second {
		t.Errorf("expected CMS cache TTL 90s, got %s", cfg.CMSCacheTTL)
	}
}
