package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort    string
	LogLevel   string
	DBLogLevel string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int
	LockTTLSecs  int

	Gateway   Gateway
	Fine      Fine
	Scheduler Scheduler
	Kafka     Kafka
}

type Gateway struct {
	BaseURL        string
	KeyID          string
	KeySecret      string
	Currency       string
	CurrencySymbol string
	Timeout        time.Duration
	RPS            float64
	Burst          int
	AutoCapture    bool
	Tolerance      decimal.Decimal
}

type Fine struct {
	BaseDailyRate   decimal.Decimal
	SimpleDailyRate decimal.Decimal // 0 follows the base rate
	PerBookCap      decimal.Decimal
	MonthlyCap      decimal.Decimal
	TotalCap        decimal.Decimal

	GraceStandard int
	GraceStudent  int
	GraceFaculty  int
	GraceAdmin    int

	FirstTimeDiscount        decimal.Decimal
	ExcellentHistoryDiscount decimal.Decimal
	FacultyDiscount          decimal.Decimal

	ExcludeClosedDays bool
	ExcludeWeekends   bool

	// CSV lists: MM-DD, weekday:nth[:month] and YYYY-MM-DD.
	Holidays         string
	FloatingHolidays string
	ClosedDays       string
	AcademicDomains  []string
}

type Scheduler struct {
	Enabled              bool
	CleanupInterval      time.Duration
	AbandonAfter         time.Duration
	PurgeAfter           time.Duration
	ReconcileInterval    time.Duration
	ReconcileWindowHours int
	AssessInterval       time.Duration
}

type Kafka struct {
	Brokers []string
	Topic   string
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvFloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func getenvDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if p, err := time.ParseDuration(v); err == nil {
			return p
		}
	}
	return d
}

func getenvDecimal(k, d string) decimal.Decimal {
	if v := os.Getenv(k); v != "" {
		if p, err := decimal.NewFromString(v); err == nil {
			return p
		}
	}
	return decimal.RequireFromString(d)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load() *Config {
	c := &Config{
		AppPort:    getenv("APP_PORT", "8080"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		DBLogLevel: getenv("DB_LOG_LEVEL", "warn"),

		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "library"),
		MySQLUser: getenv("MYSQL_USER", "library"),
		MySQLPass: getenv("MYSQL_PASS", "library"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getenvInt("REDIS_DB", 0),
		IdempTTLSecs: getenvInt("IDEMPOTENCY_TTL_SECONDS", 300),
		LockTTLSecs:  getenvInt("SCHEDULER_LOCK_TTL_SECONDS", 600),

		Gateway: Gateway{
			BaseURL:        getenv("GATEWAY_BASE_URL", "https://api.razorpay.com"),
			KeyID:          os.Getenv("GATEWAY_KEY_ID"),
			KeySecret:      os.Getenv("GATEWAY_KEY_SECRET"),
			Currency:       getenv("PAYMENT_CURRENCY", "INR"),
			CurrencySymbol: getenv("CURRENCY_SYMBOL", "₹"),
			Timeout:        getenvDuration("GATEWAY_TIMEOUT", 30*time.Second),
			RPS:            getenvFloat("GATEWAY_RPS", 10),
			Burst:          getenvInt("GATEWAY_BURST", 5),
			AutoCapture:    getenvBool("RECONCILE_AUTO_CAPTURE", false),
			Tolerance:      getenvDecimal("PAYMENT_AMOUNT_TOLERANCE", "0.01"),
		},

		Fine: Fine{
			BaseDailyRate:   getenvDecimal("FINE_BASE_DAILY_RATE", "0.50"),
			SimpleDailyRate: getenvDecimal("FINE_SIMPLE_DAILY_RATE", "0"),
			PerBookCap:      getenvDecimal("FINE_PER_BOOK_CAP", "50"),
			MonthlyCap:      getenvDecimal("FINE_MONTHLY_CAP", "100"),
			TotalCap:        getenvDecimal("FINE_TOTAL_CAP", "500"),

			GraceStandard: getenvInt("FINE_GRACE_STANDARD", 1),
			GraceStudent:  getenvInt("FINE_GRACE_STUDENT", 2),
			GraceFaculty:  getenvInt("FINE_GRACE_FACULTY", 3),
			GraceAdmin:    getenvInt("FINE_GRACE_ADMIN", 5),

			FirstTimeDiscount:        getenvDecimal("FINE_FIRST_TIME_DISCOUNT", "0.50"),
			ExcellentHistoryDiscount: getenvDecimal("FINE_EXCELLENT_HISTORY_DISCOUNT", "0.25"),
			FacultyDiscount:          getenvDecimal("FINE_FACULTY_DISCOUNT", "0.30"),

			ExcludeClosedDays: getenvBool("FINE_EXCLUDE_CLOSED_DAYS", true),
			ExcludeWeekends:   getenvBool("FINE_EXCLUDE_WEEKENDS", false),
			Holidays:          getenv("LIBRARY_HOLIDAYS", "01-01,01-26,08-15,10-02,12-25"),
			FloatingHolidays:  os.Getenv("LIBRARY_FLOATING_HOLIDAYS"),
			ClosedDays:        os.Getenv("LIBRARY_CLOSED_DAYS"),
			AcademicDomains:   splitCSV(os.Getenv("ACADEMIC_DOMAINS")),
		},

		Scheduler: Scheduler{
			Enabled:              getenvBool("SCHEDULER_ENABLED", true),
			CleanupInterval:      getenvDuration("CLEANUP_INTERVAL", 30*time.Minute),
			AbandonAfter:         getenvDuration("ORDER_ABANDON_AFTER", time.Hour),
			PurgeAfter:           getenvDuration("ORDER_PURGE_AFTER", 24*time.Hour),
			ReconcileInterval:    getenvDuration("RECONCILE_INTERVAL", time.Hour),
			ReconcileWindowHours: getenvInt("RECONCILE_WINDOW_HOURS", 24),
			AssessInterval:       getenvDuration("ASSESS_INTERVAL", 24*time.Hour),
		},

		Kafka: Kafka{
			Brokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
			Topic:   getenv("KAFKA_TOPIC", "library.fines.events"),
		},
	}
	return c
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.Gateway.KeyID == "" || c.Gateway.KeySecret == "" {
		return errors.New("missing gateway credentials (GATEWAY_KEY_ID/GATEWAY_KEY_SECRET)")
	}
	if c.Gateway.Timeout <= 0 {
		return errors.New("GATEWAY_TIMEOUT must be positive")
	}
	for name, d := range map[string]decimal.Decimal{
		"FINE_BASE_DAILY_RATE":   c.Fine.BaseDailyRate,
		"FINE_SIMPLE_DAILY_RATE": c.Fine.SimpleDailyRate,
		"FINE_PER_BOOK_CAP":      c.Fine.PerBookCap,
		"FINE_MONTHLY_CAP":       c.Fine.MonthlyCap,
		"FINE_TOTAL_CAP":         c.Fine.TotalCap,
	} {
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	for name, d := range map[string]decimal.Decimal{
		"FINE_FIRST_TIME_DISCOUNT":        c.Fine.FirstTimeDiscount,
		"FINE_EXCELLENT_HISTORY_DISCOUNT": c.Fine.ExcellentHistoryDiscount,
		"FINE_FACULTY_DISCOUNT":           c.Fine.FacultyDiscount,
	} {
		if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.Fine.GraceStandard < 0 || c.Fine.GraceStudent < 0 || c.Fine.GraceFaculty < 0 || c.Fine.GraceAdmin < 0 {
		return errors.New("grace days must not be negative")
	}
	s := c.Scheduler
	if s.Enabled && (s.CleanupInterval <= 0 || s.ReconcileInterval <= 0 || s.AssessInterval <= 0) {
		return errors.New("scheduler intervals must be positive")
	}
	if s.AbandonAfter <= 0 || s.PurgeAfter < s.AbandonAfter {
		return errors.New("ORDER_PURGE_AFTER must be at least ORDER_ABANDON_AFTER")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

func (c *Config) IdempotencyTTL() time.Duration { return time.Duration(c.IdempTTLSecs) * time.Second }

func (c *Config) LockTTL() time.Duration { return time.Duration(c.LockTTLSecs) * time.Second }

// EventsEnabled is false when no Kafka brokers are configured.
func (c *Config) EventsEnabled() bool { return len(c.Kafka.Brokers) > 0 }
