// Package schema validates captions before they enter history and request payloads
// before they reach the controller.
package schema

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"

	"live-caption-service/internal/textx"
)

// DefaultMinTokens is the minimum number of whitespace-separated words a committed caption needs.
const DefaultMinTokens = 2

var (
	ErrEmptyText     = errors.New("caption text is empty")
	ErrTooFewTokens  = errors.New("caption text has too few tokens")
	ErrInvalidCommit = errors.New("caption is not committable")
)

// commitCandidate is the validated view of a caption. Tokens are counted on the
// base text, so annotator emoji never turn a one-word caption into a valid one.
type commitCandidate struct {
	Text string `validate:"required,mintokens"`
}

type Validator struct {
	v         *validator.Validate
	minTokens int
}

func New() *Validator {
	return NewWithMinTokens(DefaultMinTokens)
}

// NewWithMinTokens builds a validator with a custom token threshold.
func NewWithMinTokens(minTokens int) *Validator {
	if minTokens < 1 {
		minTokens = 1
	}
	v := validator.New()
	sv := &Validator{v: v, minTokens: minTokens}
	_ = v.RegisterValidation("mintokens", sv.validateMinTokens)
	return sv
}

func (sv *Validator) validateMinTokens(fl validator.FieldLevel) bool {
	min := sv.minTokens
	if p := fl.Param(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			min = n
		}
	}
	return len(textx.Tokens(fl.Field().String())) >= min
}

// ValidateCaption checks that text may be committed to history.
func (sv *Validator) ValidateCaption(text string) error {
	c := commitCandidate{Text: textx.BaseText(text)}
	err := sv.v.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "required":
			return ErrEmptyText
		case "mintokens":
			return ErrTooFewTokens
		}
	}
	return errors.Join(ErrInvalidCommit, err)
}

// Validate runs struct-tag validation on an arbitrary payload.
func (sv *Validator) Validate(payload any) error {
	return sv.v.Struct(payload)
}
