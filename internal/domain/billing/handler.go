package billing

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "billing"))
	read.GET("/billing/invoices", h.ListInvoices)
	read.GET("/billing/invoices/:id", h.GetInvoice)
	read.GET("/billing/invoices/:id/payments", h.ListInvoicePayments)
	read.GET("/billing/summary/patients", h.PatientSummaries)
	read.GET("/billing/revenue/today", h.RevenueToday)
	read.GET("/payments", h.ListPayments)
	read.GET("/insurance/claims", h.ListClaims)

	write := api.Group("", auth.RequireRole("admin", "billing"))
	write.POST("/billing/invoices", h.CreateInvoice)
	write.POST("/payments", h.CreatePayment)
	write.POST("/payments/pay-all", h.PayAll)
	write.POST("/insurance/claims", h.CreateClaim)
	write.PUT("/insurance/claims/:id/status", h.UpdateClaimStatus)
}

// -- Invoices --

type createInvoiceRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	DueDate   DateValue `json:"due_date"`
	Notes     *string   `json:"notes,omitempty"`
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var due *time.Time
	if req.DueDate.Valid {
		due = &req.DueDate.Time
	}
	inv, err := h.svc.CreateInvoiceFromServices(c.Request().Context(), req.PatientID, due, req.Notes)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	var patientID uuid.UUID
	if p := c.QueryParam("patient_id"); p != "" {
		var err error
		patientID, err = uuid.Parse(p)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}
	items, total, err := h.svc.ListInvoices(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Payments --

// paymentRequest accepts both payload shapes upstream callers emit: the
// flat payment fields, or the invoice wrapped as {"invoice": {...}}. It is
// normalized here at the boundary; everything downstream sees one shape.
type paymentRequest struct {
	InvoiceID       uuid.UUID
	PatientID       uuid.UUID
	Amount          float64
	PaymentMethod   string
	PaymentDate     DateValue
	ReferenceNumber *string
}

func (r *paymentRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		InvoiceID       uuid.UUID `json:"invoice_id"`
		PatientID       uuid.UUID `json:"patient_id"`
		Amount          float64   `json:"amount"`
		PaymentMethod   string    `json:"payment_method"`
		PaymentDate     DateValue `json:"payment_date"`
		ReferenceNumber *string   `json:"reference_number"`
		Invoice         *struct {
			ID        uuid.UUID `json:"id"`
			PatientID uuid.UUID `json:"patient_id"`
		} `json:"invoice"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.InvoiceID = raw.InvoiceID
	r.PatientID = raw.PatientID
	r.Amount = raw.Amount
	r.PaymentMethod = raw.PaymentMethod
	r.PaymentDate = raw.PaymentDate
	r.ReferenceNumber = raw.ReferenceNumber
	if raw.Invoice != nil {
		if r.InvoiceID == uuid.Nil {
			r.InvoiceID = raw.Invoice.ID
		}
		if r.PatientID == uuid.Nil {
			r.PatientID = raw.Invoice.PatientID
		}
	}
	return nil
}

func (h *Handler) CreatePayment(c echo.Context) error {
	var req paymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := &Payment{
		InvoiceID:       req.InvoiceID,
		PatientID:       req.PatientID,
		Amount:          req.Amount,
		PaymentMethod:   req.PaymentMethod,
		ReferenceNumber: req.ReferenceNumber,
	}
	if req.PaymentDate.Valid {
		p.PaymentDate = req.PaymentDate.Time
	}
	inv, err := h.svc.RecordPayment(c.Request().Context(), p)
	if err != nil {
		if errors.Is(err, ErrPaymentInFlight) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"payment": p, "invoice": inv})
}

type payAllRequest struct {
	PatientID       uuid.UUID `json:"patient_id"`
	PaymentMethod   string    `json:"payment_method"`
	ReferenceNumber *string   `json:"reference_number,omitempty"`
}

func (h *Handler) PayAll(c echo.Context) error {
	var req payAllRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.PayAll(c.Request().Context(), req.PatientID, req.PaymentMethod, req.ReferenceNumber)
	if err != nil {
		if errors.Is(err, ErrPaymentInFlight) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListPayments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPayments(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListInvoicePayments(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListInvoicePayments(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"payments": items})
}

// -- Aggregation --

func (h *Handler) PatientSummaries(c echo.Context) error {
	pg := pagination.FromContext(c)
	groups, err := h.svc.PatientSummaries(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"summaries": groups})
}

func (h *Handler) RevenueToday(c echo.Context) error {
	total, err := h.svc.RevenueToday(c.Request().Context(), time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":    DayKey(time.Now()),
		"revenue": total,
	})
}

// -- Insurance claims --

func (h *Handler) CreateClaim(c echo.Context) error {
	var claim InsuranceClaim
	if err := c.Bind(&claim); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateClaim(c.Request().Context(), &claim); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, claim)
}

type claimStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateClaimStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req claimStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	claim, err := h.svc.UpdateClaimStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, claim)
}

func (h *Handler) ListClaims(c echo.Context) error {
	pg := pagination.FromContext(c)
	var patientID uuid.UUID
	if p := c.QueryParam("patient_id"); p != "" {
		var err error
		patientID, err = uuid.Parse(p)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}
	items, total, err := h.svc.ListClaims(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
