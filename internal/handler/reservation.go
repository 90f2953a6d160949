package handler

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/model"
	"github.com/iliyamo/express-reservations/internal/service"
	"github.com/iliyamo/express-reservations/internal/utils"
)

// ReservationHandler exposes reservation creation, lookup and the ticket
// download.  No authentication is involved: the reservation id acts as
// the guest's reference.
type ReservationHandler struct {
	svc *service.ReservationService
	log *zap.Logger
}

func NewReservationHandler(svc *service.ReservationService, log *zap.Logger) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc, log: log.Named("http")}
}

type createReservationRequest struct {
	Email     string `json:"email"`
	Category  string `json:"category"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Quantity  int    `json:"quantity"`
}

// reservationSummary is the public view of a reservation.  Dates are
// rendered as calendar days.
type reservationSummary struct {
	ID        string                  `json:"id"`
	Email     string                  `json:"email"`
	Category  string                  `json:"category"`
	StartDate string                  `json:"startDate"`
	EndDate   string                  `json:"endDate"`
	Quantity  int                     `json:"quantity"`
	Total     model.Money             `json:"total"`
	Status    model.ReservationStatus `json:"status"`
	CreatedAt time.Time               `json:"createdAt"`
	PaidAt    *time.Time              `json:"paidAt,omitempty"`
}

func summarize(res model.Reservation) reservationSummary {
	return reservationSummary{
		ID:        res.ID,
		Email:     res.Email,
		Category:  res.Category,
		StartDate: utils.FormatDate(res.StartDate),
		EndDate:   utils.FormatDate(res.EndDate),
		Quantity:  res.Quantity,
		Total:     res.Total,
		Status:    res.Status,
		CreatedAt: res.CreatedAt,
		PaidAt:    res.PaidAt,
	}
}

// validEmail accepts a bare address such as guest@example.com.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

// Create handles POST /v1/reservations.  On success it returns 201 with
// the PENDING reservation.  A request that would exceed the category's
// capacity gets 409.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, codeInvalidBody, "invalid request body")
	}
	body.Email = strings.TrimSpace(body.Email)
	if !validEmail(body.Email) {
		return badRequest(c, codeValidation, "a valid email is required")
	}
	if strings.TrimSpace(body.Category) == "" {
		return badRequest(c, codeValidation, "category is required")
	}

	res, err := h.svc.Create(c.Request().Context(), service.CreateReservationInput{
		Email:     body.Email,
		Category:  body.Category,
		StartDate: body.StartDate,
		EndDate:   body.EndDate,
		Quantity:  body.Quantity,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Reservation created successfully",
		"data":    summarize(res),
	})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	res, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, summarize(res))
}

// Ticket handles GET /v1/reservations/:id/ticket and streams a freshly
// rendered PDF as an attachment.
func (h *ReservationHandler) Ticket(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	doc, err := h.svc.Ticket(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "reservation-"+id+".pdf"))
	return c.Blob(http.StatusOK, "application/pdf", doc)
}
