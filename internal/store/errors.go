package store

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"taskhive/internal/ai"
	"taskhive/internal/repository"
	"taskhive/internal/session"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInviteNotFound      = errors.New("invalid invite code")
	ErrAlreadyMember       = errors.New("already a member of this organization")
	ErrInviteCodeExhausted = errors.New("could not generate a unique invite code")
)

var validate = newValidator()

// newValidator adds notblank, which rejects whitespace-only strings.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// check runs struct validation before any remote call.
func check(v any) error {
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			tag := fe.Tag()
			if tag == "notblank" || tag == "min" {
				tag = "required"
			}
			return fmt.Errorf("%w: %s is %s", ErrValidation, fieldName(fe), tag)
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "Title":
		return "title"
	case "Name":
		return "name"
	default:
		return fe.Field()
	}
}

// Message maps an error to the single user-facing line shown by front-ends.
func Message(err error) string {
	var status *ai.StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrUnauthenticated):
		return "Please sign in first."
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrAlreadyMember):
		return "You are already a member of this organization."
	case errors.Is(err, ErrInviteNotFound):
		return "Invalid invite code."
	case errors.Is(err, ErrInviteCodeExhausted):
		return "Could not create the organization, please try again."
	case errors.Is(err, ErrNotFound), repository.IsNotFound(err):
		return "Not found."
	case errors.Is(err, ai.ErrRateLimited):
		return "Rate limit exceeded, please try again later."
	case errors.Is(err, ai.ErrPaymentRequired):
		return "AI credits exhausted, please add credits to continue."
	case errors.As(err, &status):
		return "AI service error, please try again."
	default:
		return "Something went wrong: " + err.Error()
	}
}
