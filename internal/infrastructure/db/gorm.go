package db

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library-fines/internal/domain/book"
	"library-fines/internal/domain/borrow"
	"library-fines/internal/domain/payment"
	"library-fines/internal/domain/user"
)

func OpenGorm(dsn string, level logger.LogLevel) (*gorm.DB, error) {
	return openWith(mysql.Open(dsn), level)
}

// OpenGormWithDialector is the seam tests use to hand in a mocked connection.
func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	return openWith(dial, logger.Warn)
}

func openWith(dial gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table this service owns or reads.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&user.User{}, &book.Book{}, &borrow.Record{}, &payment.Order{})
}

// ParseLogLevel maps config strings to gorm levels; unknown values mean warn.
func ParseLogLevel(s string) logger.LogLevel {
	switch s {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
