package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"library-fines/internal/adapter/middleware"
	"library-fines/internal/usecase/fine"
)

const dateLayout = "2006-01-02"

type FineHandler struct {
	uc     *fine.Usecase
	logger *zap.Logger
}

func NewFineHandler(uc *fine.Usecase, logger *zap.Logger) *FineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FineHandler{uc: uc, logger: logger}
}

// parseMode accepts "", "smart", "advanced" and "simple". Anything else is
// passed through so the selector rejects it.
func parseMode(s string) fine.Mode {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "smart" {
		return ""
	}
	return fine.Mode(s)
}

func purposeFor(c echo.Context) fine.Purpose {
	if caller, ok := middleware.CallerFrom(c); ok && caller.IsAdmin() {
		return fine.PurposeAdmin
	}
	return fine.PurposeLookup
}

// GetFine computes the current fine of a borrow record without storing it.
func (h *FineHandler) GetFine(c echo.Context) error {
	borrowID := c.Param("borrow_id")
	if borrowID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing borrow_id path param"})
	}
	res, err := h.uc.CalculateForBorrow(c.Request().Context(), borrowID, parseMode(c.QueryParam("mode")), purposeFor(c))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

type calculateReq struct {
	DueDate    string `json:"due_date"    validate:"required,datetime=2006-01-02"`
	ReturnDate string `json:"return_date" validate:"omitempty,datetime=2006-01-02"`
	UserID     string `json:"user_id"     validate:"omitempty,hex32"`
	BookID     string `json:"book_id"     validate:"omitempty,max=64"`
	Mode       string `json:"mode"        validate:"omitempty,oneof=smart advanced simple"`
}

// Calculate prices an ad-hoc due/return pair.
func (h *FineHandler) Calculate(c echo.Context) error {
	var req calculateReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	due, _ := time.Parse(dateLayout, req.DueDate)
	in := fine.AdhocInput{
		DueDate: due,
		UserID:  req.UserID,
		BookID:  req.BookID,
		Mode:    parseMode(req.Mode),
		Purpose: purposeFor(c),
	}
	if req.ReturnDate != "" {
		ret, _ := time.Parse(dateLayout, req.ReturnDate)
		in.ReturnDate = &ret
	}
	res, err := h.uc.Calculate(c.Request().Context(), in)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Assess stores the full-rule fine on the record.
func (h *FineHandler) Assess(c echo.Context) error {
	out, err := h.uc.AssessFine(c.Request().Context(), c.Param("borrow_id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

type bulkReq struct {
	BorrowIDs []string `json:"borrow_ids" validate:"required,min=1,max=500,dive,hex32"`
	Parallel  bool     `json:"parallel"`
	BatchSize int      `json:"batch_size" validate:"gte=0,lte=100"`
	Mode      string   `json:"mode"       validate:"omitempty,oneof=smart advanced simple"`
}

func (h *FineHandler) Bulk(c echo.Context) error {
	var req bulkReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	sum := h.uc.BulkCalculate(c.Request().Context(), req.BorrowIDs, fine.BulkOptions{
		BatchSize: req.BatchSize,
		Parallel:  req.Parallel,
		ForceMode: parseMode(req.Mode),
	})
	return c.JSON(http.StatusOK, sum)
}

// AssessOverdue runs the scheduled assessment on demand.
func (h *FineHandler) AssessOverdue(c echo.Context) error {
	sum, err := h.uc.AssessOverdue(c.Request().Context())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, sum)
}
