package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/careops/billing-service/internal/ledger"
	"github.com/careops/billing-service/internal/models"
)

// errorBody matches the collaborator contract: every failure carries a
// human-readable detail string.
type errorBody struct {
	Detail string `json:"detail"`
}

type createBillRequest struct {
	PatientID     int64            `json:"patient_id" validate:"required,gt=0"`
	AppointmentID int64            `json:"appointment_id" validate:"required,gt=0"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
}

type listBillsResponse struct {
	Bills      []models.Bill `json:"bills"`
	TotalCount int           `json:"total_count"`
	Skip       int           `json:"skip"`
	Limit      int           `json:"limit"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "billing-service",
	})
}

// createBill accepts the pre-tax base amount and responds with the persisted
// bill carrying the post-tax total.
func (s *Server) createBill(c echo.Context) error {
	var req createBillRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "invalid request body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: err.Error()})
	}

	bill, err := s.ledger.CreateBill(c.Request().Context(), ledger.CreateBillInput{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		BaseAmount:    *req.Amount,
	})
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, bill)
}

func (s *Server) voidBill(c echo.Context) error {
	id, err := billIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "bill_id must be an integer"})
	}

	bill, err := s.ledger.VoidBill(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, bill)
}

func (s *Server) markPaid(c echo.Context) error {
	id, err := billIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "bill_id must be an integer"})
	}

	bill, err := s.ledger.MarkPaid(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, bill)
}

func (s *Server) getBill(c echo.Context) error {
	id, err := billIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Detail: "bill_id must be an integer"})
	}

	bill, err := s.ledger.GetBill(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, bill)
}

func (s *Server) listBills(c echo.Context) error {
	filter := models.BillFilter{Limit: 100}

	if v := c.QueryParam("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil || skip < 0 {
			return c.JSON(http.StatusBadRequest, errorBody{Detail: "skip must be a non-negative integer"})
		}
		filter.Skip = skip
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 100 {
			return c.JSON(http.StatusBadRequest, errorBody{Detail: "limit must be between 1 and 100"})
		}
		filter.Limit = limit
	}
	if v := c.QueryParam("patient_id"); v != "" {
		patientID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Detail: "patient_id must be an integer"})
		}
		filter.PatientID = &patientID
	}
	if v := c.QueryParam("status"); v != "" {
		// Unknown status values are rejected downstream with 400 rather than
		// matching nothing; a typo'd filter should not look like an empty ledger.
		status := models.BillStatus(v)
		filter.Status = &status
	}

	bills, total, err := s.ledger.ListBills(c.Request().Context(), filter)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, listBillsResponse{
		Bills:      bills,
		TotalCount: total,
		Skip:       filter.Skip,
		Limit:      filter.Limit,
	})
}

// writeError maps the ledger's error taxonomy onto HTTP status codes.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, models.ErrBillNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Detail: err.Error()})
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrDuplicateAppointment),
		errors.Is(err, models.ErrInvalidTransition):
		return c.JSON(http.StatusBadRequest, errorBody{Detail: err.Error()})
	default:
		s.log.Error().Err(err).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, errorBody{Detail: "internal server error"})
	}
}

func billIDParam(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("bill_id"), 10, 64)
}
