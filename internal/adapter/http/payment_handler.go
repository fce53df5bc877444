package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"library-fines/internal/adapter/middleware"
	"library-fines/internal/usecase/payment"
)

type PaymentHandler struct {
	uc     *payment.Usecase
	logger *zap.Logger
}

func NewPaymentHandler(uc *payment.Usecase, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{uc: uc, logger: logger}
}

// ownerScope is the user id the order must belong to; admins act on any.
func ownerScope(c echo.Context) string {
	caller, _ := middleware.CallerFrom(c)
	if caller.IsAdmin() {
		return ""
	}
	return caller.UserID
}

type createOrderReq struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0,dec2"`
}

func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing caller identity"})
	}
	var req createOrderReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.uc.CreateOrder(c.Request().Context(), payment.CreateOrderInput{
		BorrowID: c.Param("borrow_id"),
		UserID:   caller.UserID,
		Amount:   req.Amount,
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

type verifyReq struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required,max=64"`
	PaymentID      string `json:"payment_id"       validate:"required,max=64"`
	Signature      string `json:"signature"        validate:"required,len=64,hexadecimal"`
}

func (h *PaymentHandler) Verify(c echo.Context) error {
	var req verifyReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	conf, err := h.uc.VerifyPayment(c.Request().Context(), payment.VerifyInput(req))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, conf)
}

func (h *PaymentHandler) MarkAttempted(c echo.Context) error {
	dto, err := h.uc.MarkAttempted(c.Request().Context(), c.Param("order_id"), ownerScope(c))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type failureReq struct {
	Code        string `json:"code"        validate:"required,max=64"`
	Description string `json:"description" validate:"max=512"`
}

func (h *PaymentHandler) ReportFailure(c echo.Context) error {
	var req failureReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	dto, err := h.uc.ReportFailure(c.Request().Context(), payment.FailureInput{
		GatewayOrderID: c.Param("order_id"),
		UserID:         ownerScope(c),
		Code:           req.Code,
		Description:    req.Description,
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// Settle applies a completed payment to the stored fine.
func (h *PaymentHandler) Settle(c echo.Context) error {
	caller, _ := middleware.CallerFrom(c)
	res, err := h.uc.SettleFine(c.Request().Context(), payment.SettleInput{
		BorrowID: c.Param("borrow_id"),
		ActorID:  caller.UserID,
		OwnerID:  ownerScope(c),
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, res)
}
