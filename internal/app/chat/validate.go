package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"roomchat/internal/pkg/errs"
)

const (
	// MaxIdentityLength is the maximum number of characters in a display identity.
	MaxIdentityLength = 20

	// MaxMessageLength is the maximum number of characters in a chat message.
	MaxMessageLength = 500
)

var validate = validator.New()

// validateJoin checks an identity as sent and a room name against the catalog.
// An identity of only whitespace is refused.
func validateJoin(catalog *Catalog, identity, room string) *errs.CustomError {
	if err := validate.Var(identity, fmt.Sprintf("required,max=%d", MaxIdentityLength)); err != nil {
		return errs.NewError(errs.ErrInvalidIdentity, MaxIdentityLength)
	}
	if strings.TrimSpace(identity) == "" {
		return errs.NewError(errs.ErrInvalidIdentity, MaxIdentityLength)
	}

	if !catalog.Contains(room) {
		return errs.NewError(errs.ErrInvalidRoom)
	}

	return nil
}

// validateMessage checks text as sent is within MaxMessageLength characters and is not
// blank. The text is delivered unchanged, so padding counts toward the limit.
func validateMessage(text string) *errs.CustomError {
	err := validate.Var(text, fmt.Sprintf("required,max=%d", MaxMessageLength))
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 && fieldErrs[0].Tag() == "max" {
			return errs.NewError(errs.ErrMessageTooLong, MaxMessageLength)
		}
		return errs.NewError(errs.ErrEmptyMessage)
	}

	if strings.TrimSpace(text) == "" {
		return errs.NewError(errs.ErrEmptyMessage)
	}
	return nil
}

