package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"saldo/internal/auth"
	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/log"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, core.ErrPersistence):
		return http.StatusBadGateway, "persistence"
	case errors.Is(err, core.ErrUpload):
		return http.StatusBadGateway, "upload"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError logs err at a level matching its status and writes the JSON
// error body. Internal details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
	fields := log.NewFields().WithError(err).WithHTTPRequest(r.Method, r.URL.Path, "", "").ToSlice()
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields...)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields...)
	}
	ErrorResponse(status, code, msg).Write(w)
}

// scopeOf returns the authenticated scope. The auth middleware guarantees it
// on every /api route.
func scopeOf(r *http.Request) string {
	s, _ := auth.ScopeFromContext(r.Context())
	return s
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// recordJSON is the wire shape of a debt or income.
type recordJSON struct {
	ID       string     `json:"id"`
	Kind     core.Kind  `json:"kind"`
	Name     string     `json:"name"`
	Amount   core.Money `json:"amount"`
	Date     string     `json:"date"`
	Paid     *bool      `json:"paid,omitempty"`
	ImageURL string     `json:"image_url,omitempty"`
}

func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(time.RFC3339)
}

func debtJSON(d core.Debt) recordJSON {
	paid := d.Paid
	return recordJSON{
		ID:       d.ID,
		Kind:     core.KindDebt,
		Name:     d.Name,
		Amount:   d.Amount,
		Date:     formatDate(d.Date),
		Paid:     &paid,
		ImageURL: d.Attachment.URL,
	}
}

func incomeJSON(i core.Income) recordJSON {
	return recordJSON{
		ID:       i.ID,
		Kind:     core.KindIncome,
		Name:     i.Name,
		Amount:   i.Amount,
		Date:     formatDate(i.Date),
		ImageURL: i.Attachment.URL,
	}
}

type debtListJSON struct {
	Mode               ledger.ViewMode `json:"mode"`
	Period             string          `json:"period"`
	Debts              []recordJSON    `json:"debts"`
	DisplayedTotal     core.Money      `json:"displayed_total"`
	OutstandingAllTime core.Money      `json:"outstanding_all_time"`
}

type incomeListJSON struct {
	Mode           ledger.ViewMode `json:"mode"`
	Period         string          `json:"period"`
	Incomes        []recordJSON    `json:"incomes"`
	DisplayedTotal core.Money      `json:"displayed_total"`
	MonthlyIncome  core.Money      `json:"monthly_income"`
	Goal           core.Money      `json:"goal"`
	Progress       float64         `json:"progress"`
}

type goalJSON struct {
	Amount core.Money `json:"amount"`
}
