// Package docstore defines the document store port that backs debts, incomes
// and the income goal. Backends live in subpackages (memory, dynamo) and in
// internal/storage (SQLite).
package docstore

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/oklog/ulid/v2"

	"saldo/internal/core"
)

// Document is one stored debt or income. Paid is meaningful for debts only.
type Document struct {
	ID         string
	Name       string
	Amount     core.Money
	Date       core.Date
	Paid       bool
	Attachment core.Attachment
}

// Ports for outbound adapters. Every method is scoped by the user scope; the
// application id is fixed per store instance.
type (
	Writer interface {
		// Create stores doc and returns the assigned id.
		Create(ctx context.Context, scope string, kind core.Kind, doc Document) (id string, err error)
		// SetPaid updates the paid flag of one debt. Returns core.ErrNotFound when absent.
		SetPaid(ctx context.Context, scope, id string, paid bool) error
		// Delete removes one document. Returns core.ErrNotFound when absent.
		Delete(ctx context.Context, scope string, kind core.Kind, id string) error
		// PutGoal overwrites the goal settings document.
		PutGoal(ctx context.Context, scope string, goal core.Goal) error
	}

	Reader interface {
		// Get is a point read. Returns core.ErrNotFound when absent.
		Get(ctx context.Context, scope string, kind core.Kind, id string) (Document, error)
		// List returns the full collection in store order.
		List(ctx context.Context, scope string, kind core.Kind) ([]Document, error)
		// GetGoal reports ok=false when no settings document exists.
		GetGoal(ctx context.Context, scope string) (goal core.Goal, ok bool, err error)
	}

	Store interface {
		Writer
		Reader
		Close() error
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// NewID returns a new lexicographically sortable document id.
func NewID() string {
	return strings.ToLower(ulid.Make().String())
}

func (d Document) Debt() core.Debt {
	return core.Debt{ID: d.ID, Name: d.Name, Amount: d.Amount, Date: d.Date, Paid: d.Paid, Attachment: d.Attachment}
}

func (d Document) Income() core.Income {
	return core.Income{ID: d.ID, Name: d.Name, Amount: d.Amount, Date: d.Date, Attachment: d.Attachment}
}

// LegacyDocument is the loosely typed shape older clients wrote: amounts may
// be numbers or numeric text and dates free-form strings.
type LegacyDocument struct {
	Name      string          `json:"name"`
	Amount    json.RawMessage `json:"amount"`
	Date      string          `json:"date"`
	Paid      bool            `json:"paid"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	ImagePath string          `json:"imagePath,omitempty"`
}

// Normalize converts a legacy document. Non-numeric amounts become zero and
// unparsable dates become the zero Date so aggregation can skip them safely.
func (l LegacyDocument) Normalize() Document {
	doc := Document{
		Name: l.Name,
		Date: core.LenientDate(l.Date),
		Paid: l.Paid,
	}
	if len(l.Amount) > 0 {
		var raw any
		dec := json.NewDecoder(strings.NewReader(string(l.Amount)))
		dec.UseNumber()
		if err := dec.Decode(&raw); err == nil {
			doc.Amount, _ = core.CoerceAmount(raw)
		}
	}
	if l.ImageURL != "" && l.ImagePath != "" {
		doc.Attachment = core.Attachment{URL: l.ImageURL, Path: l.ImagePath}
	}
	return doc
}
