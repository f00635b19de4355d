package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	KindDebt   Kind = "debts"
	KindIncome Kind = "incomes"
)

// DefaultGoalCents is the monthly income goal applied when none is stored.
const DefaultGoalCents int64 = 600000

const maxNameLength = 200

type (
	Kind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Attachment references a blob owned by a record. URL and Path are set together.
	Attachment struct {
		URL  string
		Path string
	}

	Debt struct {
		ID         string
		Name       string
		Amount     Money
		Date       Date
		Paid       bool
		Attachment Attachment
	}

	Income struct {
		ID         string
		Name       string
		Amount     Money
		Date       Date
		Attachment Attachment
	}

	Goal struct {
		Amount Money
	}

	// Draft is the caller-supplied payload for a new debt or income.
	// A zero Date means "now".
	Draft struct {
		Name   string
		Amount Money
		Date   Date
	}

	// Ledger is one consistent view of a user's debts, incomes and goal.
	Ledger struct {
		Debts   []Debt
		Incomes []Income
		Goal    Goal
	}
)

func (k Kind) String() string {
	return string(k)
}

// ParseKind accepts the collection name or its singular form.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debts", "debt":
		return KindDebt, nil
	case "incomes", "income":
		return KindIncome, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) Validate() error {
	switch k {
	case KindDebt, KindIncome:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or RFC3339. An empty string yields the zero Date.
// Date-only input is midnight UTC; use ParseDateIn for user entry.
func ParseDate(s string) (Date, error) {
	return ParseDateIn(s, time.UTC)
}

// ParseDateIn is ParseDate with date-only input read as midnight in loc, so
// the entry stays in the calendar day the user picked. RFC3339 input keeps
// its own offset.
func ParseDateIn(s string, loc *time.Location) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Date{Time: t}, nil
	}
	return Date{}, ErrInvalidDate
}

// LenientDate is ParseDate for values already in the store: anything
// unparsable becomes the zero Date instead of an error.
func LenientDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		return Date{}
	}
	return d
}

// Format renders the date as RFC3339 in UTC, or "" when unset.
func (d Date) Format() string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(time.RFC3339Nano)
}

func (a Attachment) IsZero() bool {
	return a.URL == "" && a.Path == ""
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (d Draft) Validate() error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return ErrNameTooLong
	}
	return d.Amount.Validate()
}

// DefaultGoal returns the goal used when the settings document is missing.
func DefaultGoal() Goal {
	return Goal{Amount: Money{Cents: DefaultGoalCents}}
}

func (g Goal) Validate() error {
	if g.Amount.Cents <= 0 {
		return ErrInvalidGoal
	}
	return nil
}

// Clone returns a deep copy so snapshots handed to consumers stay immutable.
func (l Ledger) Clone() Ledger {
	return Ledger{
		Debts:   append([]Debt(nil), l.Debts...),
		Incomes: append([]Income(nil), l.Incomes...),
		Goal:    l.Goal,
	}
}
