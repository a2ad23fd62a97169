package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/cimillas/live-commerce/internal/decimal"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	// Decimals reach the dec_* validators as their exact text form.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	mustRegister(v, "decimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.Parse(fl.Field().String())
		return err == nil && d.Bounded()
	})
	mustRegister(v, "dec_gt", compareDecimal(func(c int) bool { return c > 0 }))
	mustRegister(v, "dec_gte", compareDecimal(func(c int) bool { return c >= 0 }))
	mustRegister(v, "dec_lt", compareDecimal(func(c int) bool { return c < 0 }))

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// compareDecimal checks the field against the tag parameter, both parsed
// exactly.
func compareDecimal(ok func(cmp int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		d, err := decimal.Parse(fl.Field().String())
		if err != nil {
			return false
		}
		bound, err := decimal.Parse(fl.Param())
		if err != nil {
			return false
		}
		return ok(d.Cmp(bound))
	}
}

// validateRequest checks req against its validate tags and folds every
// failure into one message.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		field := fe.Field()
		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "oneof":
			message = fmt.Sprintf("%s must be one of %s", field, fe.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", field, fe.Param())
		case "gte":
			message = fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
		case "lte":
			message = fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "decimal":
			message = fmt.Sprintf("%s must have at most %d integer and %d fractional digits",
				field, decimal.MaxIntegerDigits, decimal.MaxFractionDigits)
		case "dec_gt":
			message = fmt.Sprintf("%s must be greater than %s", field, fe.Param())
		case "dec_gte":
			message = fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
		case "dec_lt":
			message = fmt.Sprintf("%s must be less than %s", field, fe.Param())
		default:
			message = fmt.Sprintf("%s failed validation for %s", field, fe.Tag())
		}
		messages = append(messages, message)
	}
	return errors.New(strings.Join(messages, "; "))
}
