package core

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the on-disk and comparison format of record dates.
const DateLayout = "2006-01-02"

const (
	Expense Kind = "Expense"
	Income  Kind = "Income"
)

type (
	Kind string

	Date struct {
		time.Time
	}

	// Record is one ledger entry. ID is the stable identity assigned at
	// creation; the remaining six fields are the visible ones.
	Record struct {
		ID       string
		Date     Date
		Kind     Kind
		Category string
		Amount   Money
		Note     string
		ImageRef string
	}
)

// localized kind labels written by older versions of the ledger
var kindAliases = map[string]Kind{
	"expense": Expense,
	"income":  Income,
	"支出":      Expense,
	"收入":      Income,
}

// ParseKind accepts the canonical literals case-insensitively and the
// localized labels found in legacy files.
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", s)}
	}
	return k, nil
}

func (k Kind) Validate() error {
	switch k {
	case Expense, Income:
		return nil
	default:
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", string(k))}
	}
}

func (k Kind) String() string {
	return string(k)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Out-of-range days such as
// 2024-02-30 are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q: use YYYY-MM-DD", s)}
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return &ValidationError{Field: "date", Message: "date cannot be zero"}
	}
	return nil
}

// String returns the YYYY-MM-DD form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey returns the YYYY-MM prefix used for monthly grouping.
func (d Date) MonthKey() string {
	s := d.String()
	if len(s) < 7 {
		return s
	}
	return s[:7]
}

// Before reports whether d is strictly earlier than o, by calendar day.
func (d Date) Before(o Date) bool {
	return d.String() < o.String()
}

// After reports whether d is strictly later than o, by calendar day.
func (d Date) After(o Date) bool {
	return d.String() > o.String()
}

func (r Record) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if err := r.Kind.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	return nil
}

// SameFields reports structural equality over the six visible fields.
// Amounts compare numerically, so "120" and "120.00" match. ID is ignored.
func (r Record) SameFields(o Record) bool {
	return r.Date.String() == o.Date.String() &&
		r.Kind == o.Kind &&
		r.Category == o.Category &&
		r.Amount.Equal(o.Amount.Decimal) &&
		r.Note == o.Note &&
		r.ImageRef == o.ImageRef
}

// HasImage reports whether a receipt image is attached.
func (r Record) HasImage() bool {
	return strings.TrimSpace(r.ImageRef) != ""
}
