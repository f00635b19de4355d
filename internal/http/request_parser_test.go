package http

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/view"
)

func TestParsePeriod(t *testing.T) {
	fallback := ledger.Period{Year: 2024, Month: time.June}
	tests := []struct {
		name    string
		query   url.Values
		want    ledger.Period
		wantErr bool
	}{
		{name: "empty keeps fallback", query: url.Values{}, want: fallback},
		{name: "period param", query: url.Values{"period": {"2023-02"}}, want: ledger.Period{Year: 2023, Month: time.February}},
		{name: "period wins over year", query: url.Values{"period": {"2023-02"}, "year": {"1999"}}, want: ledger.Period{Year: 2023, Month: time.February}},
		{name: "year only", query: url.Values{"year": {"2022"}}, want: ledger.Period{Year: 2022, Month: time.June}},
		{name: "year and month", query: url.Values{"year": {"2022"}, "month": {"11"}}, want: ledger.Period{Year: 2022, Month: time.November}},
		{name: "malformed period", query: url.Values{"period": {"2023/02"}}, wantErr: true},
		{name: "non-numeric month", query: url.Values{"month": {"june"}}, wantErr: true},
		{name: "month out of range", query: url.Values{"month": {"13"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePeriod(tt.query, fallback)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePeriod() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidation) {
					t.Errorf("ParsePeriod() error = %v, want validation error", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParsePeriod() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseViewState(t *testing.T) {
	base := view.DefaultState(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC), time.UTC)

	tests := []struct {
		name       string
		query      url.Values
		wantMode   ledger.ViewMode
		wantFilter ledger.Filter
		wantChart  view.ChartType
		wantErr    bool
	}{
		{name: "defaults", query: url.Values{}, wantMode: ledger.AllTime, wantFilter: ledger.FilterAll, wantChart: view.ChartBar},
		{name: "monthly pie", query: url.Values{"mode": {"monthly"}, "chart": {"pie"}}, wantMode: ledger.Monthly, wantFilter: ledger.FilterAll, wantChart: view.ChartPie},
		{name: "explicit filter", query: url.Values{"filter": {"paid"}}, wantMode: ledger.AllTime, wantFilter: ledger.FilterPaid, wantChart: view.ChartBar},
		{name: "bucket selection", query: url.Values{"select": {"outstanding"}}, wantMode: ledger.AllTime, wantFilter: ledger.FilterOutstanding, wantChart: view.ChartBar},
		{name: "selection toggles filter off", query: url.Values{"filter": {"income"}, "select": {"income"}}, wantMode: ledger.AllTime, wantFilter: ledger.FilterAll, wantChart: view.ChartBar},
		{name: "unknown mode", query: url.Values{"mode": {"weekly"}}, wantErr: true},
		{name: "unknown filter", query: url.Values{"filter": {"pending"}}, wantErr: true},
		{name: "unknown chart", query: url.Values{"chart": {"donut"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseViewState(tt.query, base)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseViewState() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Mode != tt.wantMode || got.Filter != tt.wantFilter || got.Chart != tt.wantChart {
				t.Errorf("ParseViewState() = %s/%s/%s, want %s/%s/%s",
					got.Mode, got.Filter, got.Chart, tt.wantMode, tt.wantFilter, tt.wantChart)
			}
			if got.Location != base.Location {
				t.Errorf("ParseViewState() dropped the location")
			}
		})
	}
}

func TestRequestBodyParser_Draft(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantCents   int64
		wantName    string
		wantDate    bool
		wantErr     error
	}{
		{
			name:        "JSON with numeric amount",
			contentType: "application/json",
			body:        `{"name":"Rent","amount":12.5,"date":"2024-03-01"}`,
			wantCents:   1250,
			wantName:    "Rent",
			wantDate:    true,
		},
		{
			name:        "JSON with text amount and no date",
			contentType: "application/json; charset=utf-8",
			body:        `{"name":"  Salary ","amount":"3000"}`,
			wantCents:   300000,
			wantName:    "Salary",
		},
		{
			name:        "form encoded",
			contentType: "application/x-www-form-urlencoded",
			body:        url.Values{"name": {"Coffee"}, "amount": {"3,20"}, "date": {"2024-03-01T10:00:00Z"}}.Encode(),
			wantCents:   320,
			wantName:    "Coffee",
			wantDate:    true,
		},
		{
			name:        "non-numeric amount",
			contentType: "application/json",
			body:        `{"name":"Rent","amount":"lots"}`,
			wantErr:     core.ErrInvalidAmount,
		},
		{
			name:        "empty name",
			contentType: "application/json",
			body:        `{"name":"","amount":"5"}`,
			wantErr:     core.ErrEmptyName,
		},
		{
			name:        "bad date",
			contentType: "application/json",
			body:        `{"name":"Rent","amount":"5","date":"yesterday"}`,
			wantErr:     core.ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/debts", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			p := NewRequestBodyParser(httptest.NewRecorder(), req, 1<<20)
			defer p.Close()
			if err := p.Err(); err != nil {
				t.Fatalf("Err() = %v", err)
			}

			d, err := p.Draft(time.UTC)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Draft() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Draft() error = %v", err)
			}
			if d.Amount.Cents != tt.wantCents || d.Name != tt.wantName {
				t.Errorf("Draft() = %+v, want %d cents named %q", d, tt.wantCents, tt.wantName)
			}
			if d.Date.IsZero() == tt.wantDate {
				t.Errorf("Draft() date = %v, want set=%v", d.Date, tt.wantDate)
			}
		})
	}
}

func TestRequestBodyParser_DraftDateInLedgerZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/incomes",
		strings.NewReader(`{"name":"Salary","amount":"1000","date":"2024-01-01"}`))
	req.Header.Set("Content-Type", "application/json")
	p := NewRequestBodyParser(httptest.NewRecorder(), req, 1<<20)
	defer p.Close()

	d, err := p.Draft(ny)
	if err != nil {
		t.Fatalf("Draft() error = %v", err)
	}
	if got := ledger.PeriodOf(d.Date.Time, ny); got != (ledger.Period{Year: 2024, Month: time.January}) {
		t.Errorf("entry dated 2024-01-01 falls in %v, want 2024-01", got)
	}
}

func TestRequestBodyParser_ThousandsSeparatorRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/debts", strings.NewReader(`{"name":"Loan","amount":"1,000"}`))
	req.Header.Set("Content-Type", "application/json")
	p := NewRequestBodyParser(httptest.NewRecorder(), req, 1<<20)
	defer p.Close()

	_, err := p.Draft(time.UTC)
	if !errors.Is(err, core.ErrAmbiguousAmount) {
		t.Fatalf("Draft() error = %v, want ambiguous amount", err)
	}
	if status, _ := statusFor(err); status != http.StatusUnprocessableEntity {
		t.Errorf("statusFor() = %d, want 422", status)
	}
}

func TestRequestBodyParser_Malformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/debts", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	p := NewRequestBodyParser(httptest.NewRecorder(), req, 1<<20)
	if !errors.Is(p.Err(), errMalformedBody) {
		t.Fatalf("Err() = %v, want malformed body", p.Err())
	}
	if status, _ := statusFor(p.Err()); status != http.StatusBadRequest {
		t.Errorf("statusFor() = %d, want 400", status)
	}
}

func TestRequestBodyParser_Bool(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    bool
		wantErr bool
	}{
		{name: "JSON true", body: `{"paid":true}`, want: true},
		{name: "JSON false", body: `{"paid":false}`, want: false},
		{name: "text value", body: `{"paid":"true"}`, want: true},
		{name: "missing", body: `{}`, wantErr: true},
		{name: "not a bool", body: `{"paid":"maybe"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/debts/1", strings.NewReader(tt.body))
			p := NewRequestBodyParser(httptest.NewRecorder(), req, 1<<20)
			got, err := p.Bool("paid")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Bool() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Bool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func multipartRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "receipt.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(image); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/debts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRequestBodyParser_Multipart(t *testing.T) {
	image := []byte("\x89PNG\r\n\x1a\nfake")
	req := multipartRequest(t, map[string]string{"name": "Groceries", "amount": "42.10"}, image)

	p := NewRequestBodyParser(httptest.NewRecorder(), req, 1<<20)
	defer p.Close()
	if err := p.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	d, err := p.Draft(time.UTC)
	if err != nil || d.Amount.Cents != 4210 || d.Name != "Groceries" {
		t.Fatalf("Draft() = %+v, %v", d, err)
	}
	f := p.File()
	if f == nil {
		t.Fatal("File() = nil, want the uploaded image")
	}
	if f.Name != "receipt.png" {
		t.Errorf("File().Name = %q", f.Name)
	}
	got, _ := io.ReadAll(f.Body)
	if !bytes.Equal(got, image) {
		t.Errorf("File().Body = %q, want %q", got, image)
	}
}

func TestRequestBodyParser_MultipartWithoutImage(t *testing.T) {
	req := multipartRequest(t, map[string]string{"name": "Groceries", "amount": "1"}, nil)
	p := NewRequestBodyParser(httptest.NewRecorder(), req, 1<<20)
	defer p.Close()
	if err := p.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if p.File() != nil {
		t.Error("File() should be nil without an image part")
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	req := multipartRequest(t, map[string]string{"name": "Big"}, bytes.Repeat([]byte("x"), 2<<20))
	p := NewRequestBodyParser(httptest.NewRecorder(), req, 512<<10)
	var tooLarge *http.MaxBytesError
	if !errors.As(p.Err(), &tooLarge) {
		t.Fatalf("Err() = %v, want MaxBytesError", p.Err())
	}
	if status, _ := statusFor(p.Err()); status != http.StatusRequestEntityTooLarge {
		t.Errorf("statusFor() = %d, want 413", status)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Rent  ", "Rent"},
		{"a\x00b\x07c", "abc"},
		{"line\nbreak", "line\nbreak"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
