package cart

import (
	"fmt"

	"github.com/angelmondragon/storefront-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateDelta checks the fields a merge reads from the incoming line. Its
// stock is ignored on merge, so it is not checked here.
func validateDelta(line *models.CartLine) error {
	if line == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart line is required")
	}
	if err := validate.StructPartial(line, "ProductID", "CartQuantity"); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// validateNewLine checks a line about to be stored as-is.
func validateNewLine(line *models.CartLine) error {
	if err := validate.Struct(line); err != nil {
		return formatValidationErrors(err)
	}
	if line.CartQuantity > line.StockQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"CartQuantity": fmt.Sprintf("must not exceed stock of %d", line.StockQuantity)})
	}
	if line.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"Price": "must not be negative"})
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
