package core

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RecordInput is a record as typed into an entry form: every field is raw text.
type RecordInput struct {
	Date     string `validate:"required,datetime=2006-01-02"`
	Kind     string `validate:"required"`
	Category string `validate:"required,max=64"`
	Amount   string `validate:"required"`
	Note     string `validate:"max=500"`
	ImageRef string `validate:"max=1024"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var fieldNames = map[string]string{
	"Date":     "date",
	"Kind":     "kind",
	"Category": "category",
	"Amount":   "amount",
	"Note":     "note",
	"ImageRef": "image_ref",
}

// Parse validates the input and converts it into a Record without an ID.
// All failures are *ValidationError values.
func (in RecordInput) Parse() (Record, error) {
	in.Date = strings.TrimSpace(in.Date)
	in.Kind = strings.TrimSpace(in.Kind)
	in.Category = strings.TrimSpace(in.Category)
	in.Amount = strings.TrimSpace(in.Amount)
	in.Note = strings.TrimSpace(in.Note)
	in.ImageRef = strings.TrimSpace(in.ImageRef)

	if err := validate.Struct(in); err != nil {
		return Record{}, translate(err)
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		return Record{}, err
	}
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return Record{}, err
	}
	amount, err := ParseMoney(in.Amount)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Date:     date,
		Kind:     kind,
		Category: in.Category,
		Amount:   amount,
		Note:     in.Note,
		ImageRef: in.ImageRef,
	}, nil
}

// translate turns the first validator failure into a ValidationError.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	field := fieldNames[fe.StructField()]
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: field + " is required"}
	case "datetime":
		return &ValidationError{Field: field, Message: "invalid date: use YYYY-MM-DD"}
	case "max":
		return &ValidationError{Field: field, Message: field + " is too long (max " + fe.Param() + " characters)"}
	default:
		return &ValidationError{Field: field, Message: "invalid " + field}
	}
}
