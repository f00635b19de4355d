// This file implements utilities for parsing and validating HTTP request data:
// view state from query strings and record payloads from JSON, form or
// multipart bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"saldo/internal/attachments"
	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/view"
)

const (
	maxJSONBody       = 64 << 10
	multipartMemory   = 8 << 20
	multipartHeadroom = 1 << 20
	imageField        = "image"
)

var errMalformedBody = errors.New("malformed request body")

// ParsePeriod reads period=YYYY-MM, or year and month. Missing parts keep
// the fallback; present but invalid parts are a validation error.
func ParsePeriod(q url.Values, fallback ledger.Period) (ledger.Period, error) {
	p := fallback
	if v := strings.TrimSpace(q.Get("period")); v != "" {
		t, err := time.Parse("2006-01", v)
		if err != nil {
			return ledger.Period{}, fmt.Errorf("%w: period must be YYYY-MM", core.ErrValidation)
		}
		return ledger.Period{Year: t.Year(), Month: t.Month()}, nil
	}
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return ledger.Period{}, fmt.Errorf("%w: invalid year %q", core.ErrValidation, v)
		}
		p.Year = y
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return ledger.Period{}, fmt.Errorf("%w: invalid month %q", core.ErrValidation, v)
		}
		p.Month = time.Month(m)
	}
	if err := p.Validate(); err != nil {
		return ledger.Period{}, err
	}
	return p, nil
}

// ParseViewState applies mode, period, filter, chart and a bucket selection
// from q on top of base. Absent parameters keep base values.
func ParseViewState(q url.Values, base view.State) (view.State, error) {
	s := base
	var err error
	if q.Has("mode") {
		if s.Mode, err = ledger.ParseViewMode(q.Get("mode")); err != nil {
			return view.State{}, err
		}
	}
	if s.Period, err = ParsePeriod(q, s.Period); err != nil {
		return view.State{}, err
	}
	if q.Has("filter") {
		if s.Filter, err = ledger.ParseFilter(q.Get("filter")); err != nil {
			return view.State{}, err
		}
	}
	if q.Has("chart") {
		if s.Chart, err = view.ParseChartType(q.Get("chart")); err != nil {
			return view.State{}, err
		}
	}
	if q.Has("select") {
		s = s.WithSelection(strings.TrimSpace(q.Get("select")))
	}
	return s, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports JSON, form-encoded and multipart data; a multipart body may
// carry an image part.
type RequestBodyParser struct {
	jsonData   map[string]any
	formData   url.Values
	file       multipart.File
	fileHeader *multipart.FileHeader
	err        error
}

// NewRequestBodyParser reads and parses the body of r. Bodies are capped:
// JSON and forms at 64KiB, multipart at maxUpload plus headroom.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request, maxUpload int64) *RequestBodyParser {
	p := &RequestBodyParser{}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartHeadroom)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			p.err = bodyError(err)
			return p
		}
		p.formData = r.MultipartForm.Value
		f, fh, err := r.FormFile(imageField)
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			p.err = bodyError(err)
		default:
			p.file, p.fileHeader = f, fh
		}
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			p.err = bodyError(err)
			return p
		}
		p.formData = r.PostForm
	default:
		// JSON, also when the client omits the content type
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err != nil {
			p.err = bodyError(err)
			return p
		}
		p.jsonData = map[string]any{}
		if len(body) == 0 {
			return p
		}
		dec := json.NewDecoder(strings.NewReader(string(body)))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = errMalformedBody
		}
	}
	return p
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", errMalformedBody, err)
}

// Err reports a body that could not be read or decoded.
func (p *RequestBodyParser) Err() error { return p.err }

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	_, ok := p.formData[key]
	return ok
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(firstValue(p.formData[key]))
	}
	return ""
}

// Bool reads a boolean sent as a JSON bool or as text.
func (p *RequestBodyParser) Bool(key string) (bool, error) {
	if !p.Has(key) {
		return false, fmt.Errorf("%w: %s is required", core.ErrValidation, key)
	}
	b, err := strconv.ParseBool(p.Get(key))
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", core.ErrValidation, key)
	}
	return b, nil
}

// Draft builds a record payload from name, amount and date. The amount is
// parsed as a decimal here; nothing downstream ever coerces text. A date
// without a time is midnight in loc.
func (p *RequestBodyParser) Draft(loc *time.Location) (core.Draft, error) {
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.Draft{}, err
	}
	date, err := core.ParseDateIn(p.Get("date"), loc)
	if err != nil {
		return core.Draft{}, err
	}
	d := core.Draft{Name: p.Get("name"), Amount: amount, Date: date}
	return d, d.Validate()
}

// File returns the uploaded image, or nil when none was sent.
func (p *RequestBodyParser) File() *attachments.File {
	if p.file == nil {
		return nil
	}
	return &attachments.File{
		Name:        p.fileHeader.Filename,
		ContentType: p.fileHeader.Header.Get("Content-Type"),
		Body:        p.file,
	}
}

// Close releases the uploaded file, if any.
func (p *RequestBodyParser) Close() {
	if p.file != nil {
		_ = p.file.Close()
	}
}

func firstValue(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
