package http

import (
	"github.com/labstack/echo/v4"

	"library-fines/internal/adapter/middleware"
)

type Handlers struct {
	Health   *Handler
	Fines    *FineHandler
	Payments *PaymentHandler
	Admin    *AdminHandler
}

// Register mounts every route on e. idem guards the requests that create or
// move money; pass nil to leave them unguarded.
func Register(e *echo.Echo, h Handlers, idem echo.MiddlewareFunc) {
	e.GET("/health", h.Health.Health)

	guarded := []echo.MiddlewareFunc{}
	if idem != nil {
		guarded = append(guarded, idem)
	}

	api := e.Group("", middleware.Identify())
	api.GET("/borrows/:borrow_id/fine", h.Fines.GetFine)
	api.POST("/fines/calculate", h.Fines.Calculate)
	api.POST("/borrows/:borrow_id/fine/assess", h.Fines.Assess, middleware.RequireAdmin())

	api.POST("/borrows/:borrow_id/payment-orders", h.Payments.CreateOrder, guarded...)
	api.POST("/payments/verify", h.Payments.Verify, guarded...)
	api.POST("/payments/:order_id/attempted", h.Payments.MarkAttempted)
	api.POST("/payments/:order_id/failure", h.Payments.ReportFailure)
	api.POST("/borrows/:borrow_id/fine/settle", h.Payments.Settle, guarded...)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.PUT("/borrows/:borrow_id/fine", h.Admin.AdjustFine)
	admin.GET("/borrows/:borrow_id/audit", h.Admin.BorrowAudit)
	admin.GET("/users/:user_id/audit", h.Admin.UserAudit)
	admin.POST("/borrows/:borrow_id/reconcile", h.Admin.ReconcileBorrow)
	admin.POST("/reconcile", h.Admin.ReconcileAll)
	admin.POST("/fines/bulk", h.Fines.Bulk)
	admin.POST("/fines/assess-overdue", h.Fines.AssessOverdue)
	admin.POST("/payments/sweep", h.Admin.Sweep)
	admin.GET("/payments/stats", h.Admin.Stats)
}
