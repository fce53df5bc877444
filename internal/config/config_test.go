package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GATEWAY_KEY_ID", "rzp_test")
	t.Setenv("GATEWAY_KEY_SECRET", "secret")

	c := Load()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if c.AppPort != "8080" || c.Gateway.Currency != "INR" || c.Gateway.Timeout != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if !c.Fine.BaseDailyRate.Equal(decimal.RequireFromString("0.50")) || !c.Fine.TotalCap.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected fine defaults: %+v", c.Fine)
	}
	if c.Scheduler.CleanupInterval != 30*time.Minute || c.Scheduler.ReconcileWindowHours != 24 {
		t.Fatalf("unexpected scheduler defaults: %+v", c.Scheduler)
	}
	if c.EventsEnabled() {
		t.Fatalf("events should be off without brokers")
	}
	if c.IdempotencyTTL() != 5*time.Minute {
		t.Fatalf("idempotency ttl = %v", c.IdempotencyTTL())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GATEWAY_KEY_ID", "rzp_test")
	t.Setenv("GATEWAY_KEY_SECRET", "secret")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("FINE_PER_BOOK_CAP", "75.5")
	t.Setenv("RECONCILE_INTERVAL", "15m")
	t.Setenv("ACADEMIC_DOMAINS", "uni.edu, college.ac.in")
	t.Setenv("REDIS_DB", "not-a-number")

	c := Load()
	if got := strings.Join(c.Kafka.Brokers, "|"); got != "k1:9092|k2:9092" {
		t.Fatalf("brokers = %q", got)
	}
	if !c.EventsEnabled() {
		t.Fatalf("events should be on")
	}
	if !c.Fine.PerBookCap.Equal(decimal.RequireFromString("75.5")) {
		t.Fatalf("per book cap = %s", c.Fine.PerBookCap)
	}
	if c.Scheduler.ReconcileInterval != 15*time.Minute {
		t.Fatalf("reconcile interval = %v", c.Scheduler.ReconcileInterval)
	}
	if len(c.Fine.AcademicDomains) != 2 || c.Fine.AcademicDomains[1] != "college.ac.in" {
		t.Fatalf("academic domains = %v", c.Fine.AcademicDomains)
	}
	if c.RedisDB != 0 {
		t.Fatalf("unparsable REDIS_DB should keep the default, got %d", c.RedisDB)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("GATEWAY_KEY_ID", "rzp_test")
	t.Setenv("GATEWAY_KEY_SECRET", "secret")

	tests := []struct {
		name   string
		mutate func(c *Config)
		errSub string
	}{
		{"missing mysql host", func(c *Config) { c.MySQLHost = "" }, "missing MySQL"},
		{"bad mysql port", func(c *Config) { c.MySQLPort = "http-nope" }, "invalid MYSQL_PORT"},
		{"missing app port", func(c *Config) { c.AppPort = "" }, "APP_PORT"},
		{"missing gateway secret", func(c *Config) { c.Gateway.KeySecret = "" }, "gateway credentials"},
		{"negative cap", func(c *Config) { c.Fine.MonthlyCap = decimal.NewFromInt(-1) }, "FINE_MONTHLY_CAP"},
		{"discount above one", func(c *Config) { c.Fine.FacultyDiscount = decimal.RequireFromString("1.5") }, "FINE_FACULTY_DISCOUNT"},
		{"negative grace", func(c *Config) { c.Fine.GraceStudent = -1 }, "grace days"},
		{"zero interval", func(c *Config) { c.Scheduler.AssessInterval = 0 }, "intervals"},
		{"purge before abandon", func(c *Config) { c.Scheduler.PurgeAfter = time.Minute }, "ORDER_PURGE_AFTER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Load()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Fatalf("err = %v, want containing %q", err, tt.errSub)
			}
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	c := &Config{MySQLHost: "db", MySQLPort: "3307", MySQLDB: "lib", MySQLUser: "u", MySQLPass: "p"}
	want := "u:p@tcp(db:3307)/lib?parseTime=true&loc=UTC&charset=utf8mb4,utf8"
	if got := c.MySQLDSN(); got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}
