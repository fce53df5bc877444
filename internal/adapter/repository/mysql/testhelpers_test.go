package mysql

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	bookDomain "library-fines/internal/domain/book"
	borrowDomain "library-fines/internal/domain/borrow"
	paymentDomain "library-fines/internal/domain/payment"
	userDomain "library-fines/internal/domain/user"
	"library-fines/pkg/id"
)

// openTestDB gives every test its own named in-memory database so pooled
// connections (and transactions) see the same schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", id.NewID32())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&userDomain.User{}, &bookDomain.Book{}, &borrowDomain.Record{}, &paymentDomain.Order{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func makeRecord(userID string, due time.Time) *borrowDomain.Record {
	return &borrowDomain.Record{
		BorrowID:      id.NewID32(),
		UserID:        userID,
		BookID:        id.NewID32(),
		BorrowerName:  "Asha",
		BorrowerEmail: "asha@example.com",
		BorrowDate:    due.AddDate(0, 0, -14),
		DueDate:       due,
		Fine:          decimal.Zero,
		PaymentStatus: borrowDomain.PaymentNone,
	}
}

func makeOrder(borrowID, gatewayOrderID string, status paymentDomain.Status, createdAt time.Time) *paymentDomain.Order {
	return &paymentDomain.Order{
		OrderID:        id.NewID32(),
		BorrowID:       borrowID,
		UserID:         "uuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuu",
		GatewayOrderID: gatewayOrderID,
		Receipt:        "fine_x",
		Amount:         dec("4.50"),
		Currency:       "INR",
		Status:         status,
		ExpiresAt:      createdAt.Add(time.Hour),
		CreatedAt:      createdAt,
	}
}
