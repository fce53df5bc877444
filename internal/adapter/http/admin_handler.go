package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"library-fines/internal/adapter/middleware"
	"library-fines/internal/domain/borrow"
	"library-fines/internal/infrastructure/metrics"
	"library-fines/internal/usecase/audit"
	"library-fines/internal/usecase/cleanup"
	"library-fines/internal/usecase/reconcile"
)

const maxWindowHours = 24 * 30

// Counters exposes in-process metric totals and timing digests.
type Counters interface {
	Snapshot() map[string]int64
	Summaries() map[string]metrics.Summary
}

type AdminHandler struct {
	audit     *audit.Usecase
	reconcile *reconcile.Usecase
	cleanup   *cleanup.Usecase
	counters  Counters
	logger    *zap.Logger
}

func NewAdminHandler(a *audit.Usecase, r *reconcile.Usecase, cl *cleanup.Usecase, counters Counters, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{audit: a, reconcile: r, cleanup: cl, counters: counters, logger: logger}
}

type adjustReq struct {
	NewFine decimal.Decimal  `json:"new_fine" validate:"gte=0,lte=100000,dec2"`
	OldFine *decimal.Decimal `json:"old_fine"`
	Reason  string           `json:"reason"   validate:"required,reason"`
	Notes   string           `json:"notes"    validate:"max=500"`
}

// AdjustFine sets a fine by hand. With old_fine set the change is rejected
// when the stored fine differs.
func (h *AdminHandler) AdjustFine(c echo.Context) error {
	var req adjustReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	caller, _ := middleware.CallerFrom(c)
	ctx := c.Request().Context()

	var (
		entry *borrow.FineAuditEntry
		err   error
	)
	if req.OldFine != nil {
		entry, err = h.audit.RecordAdjustment(ctx, audit.RecordInput{
			ActorID:  caller.UserID,
			BorrowID: c.Param("borrow_id"),
			OldFine:  *req.OldFine,
			NewFine:  req.NewFine,
			Reason:   borrow.ReasonCode(req.Reason),
			Notes:    req.Notes,
		})
	} else {
		entry, err = h.audit.AdjustFine(ctx, audit.AdjustInput{
			ActorID:  caller.UserID,
			BorrowID: c.Param("borrow_id"),
			NewFine:  req.NewFine,
			Reason:   borrow.ReasonCode(req.Reason),
			Notes:    req.Notes,
		})
	}
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *AdminHandler) BorrowAudit(c echo.Context) error {
	trail, err := h.audit.GetAuditTrail(c.Request().Context(), c.Param("borrow_id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, trail)
}

func (h *AdminHandler) UserAudit(c echo.Context) error {
	trail, err := h.audit.GetUserAuditTrail(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, trail)
}

func (h *AdminHandler) ReconcileBorrow(c echo.Context) error {
	rep, err := h.reconcile.ReconcileBorrow(c.Request().Context(), c.Param("borrow_id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// ReconcileAll sweeps the trailing window given by ?hours= (default 24).
func (h *AdminHandler) ReconcileAll(c echo.Context) error {
	hours := 0
	if raw := c.QueryParam("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxWindowHours {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hours must be between 1 and " + strconv.Itoa(maxWindowHours)})
		}
		hours = n
	}
	sum, err := h.reconcile.ReconcileAll(c.Request().Context(), hours)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *AdminHandler) Sweep(c echo.Context) error {
	res, err := h.cleanup.Sweep(c.Request().Context(), time.Now().UTC())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

type paymentStats struct {
	Reconcile *reconcile.Stats           `json:"reconcile"`
	Cleanup   *cleanup.Stats             `json:"cleanup"`
	Counters  map[string]int64           `json:"counters,omitempty"`
	Timings   map[string]metrics.Summary `json:"timings,omitempty"`
}

func (h *AdminHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	rs, err := h.reconcile.Stats(ctx)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	cs, err := h.cleanup.Stats(ctx)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	out := paymentStats{Reconcile: rs, Cleanup: cs}
	if h.counters != nil {
		out.Counters = h.counters.Snapshot()
		out.Timings = h.counters.Summaries()
	}
	return c.JSON(http.StatusOK, out)
}
