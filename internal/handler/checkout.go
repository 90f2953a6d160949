package handler

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/service"
)

var (
	expirationPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern        = regexp.MustCompile(`^\d{3,4}$`)
)

// CheckoutHandler accepts simulated card payments.
type CheckoutHandler struct {
	svc *service.CheckoutService
	log *zap.Logger
}

func NewCheckoutHandler(svc *service.CheckoutService, log *zap.Logger) *CheckoutHandler {
	if svc == nil {
		panic("nil service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{svc: svc, log: log.Named("http")}
}

type checkoutRequest struct {
	ReservationID string `json:"reservationId"`
	CardNumber    string `json:"cardNumber"`
	CardHolder    string `json:"cardHolder"`
	Expiration    string `json:"expiration"`
	CVV           string `json:"cvv"`
}

// validate checks the shape of the payment fields.  The card number
// itself is checked by the checkout service.
func (r checkoutRequest) validate() string {
	switch {
	case strings.TrimSpace(r.ReservationID) == "":
		return "reservationId is required"
	case strings.TrimSpace(r.CardHolder) == "":
		return "cardHolder is required"
	case !expirationPattern.MatchString(strings.TrimSpace(r.Expiration)):
		return "expiration must be MM/YY"
	case !cvvPattern.MatchString(strings.TrimSpace(r.CVV)):
		return "cvv must be 3 or 4 digits"
	}
	return ""
}

// Pay handles POST /v1/checkout.  The response is sent as soon as the
// reservation is marked PAID; the ticket email is delivered in the
// background.
func (h *CheckoutHandler) Pay(c echo.Context) error {
	var body checkoutRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, codeInvalidBody, "invalid request body")
	}
	if msg := body.validate(); msg != "" {
		return badRequest(c, codeValidation, msg)
	}

	result, err := h.svc.Pay(c.Request().Context(), service.CheckoutInput{
		ReservationID: strings.TrimSpace(body.ReservationID),
		CardNumber:    body.CardNumber,
		CardHolder:    strings.TrimSpace(body.CardHolder),
		Expiration:    strings.TrimSpace(body.Expiration),
		CVV:           strings.TrimSpace(body.CVV),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Payment processed successfully",
		"data":    result,
	})
}
