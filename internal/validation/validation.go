package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns nil when there are no violations, otherwise a validation apperr
// carrying the map as details.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return apperr.Validation("validation_failed").WithDetails(v)
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// Percent records "out_of_range" unless val is within 0..100 with at most two decimals.
func Percent(field string, val decimal.Decimal, v Violations) {
	if !validPercent(val) {
		v[field] = "out_of_range"
	}
}

func validPercent(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(100)) && d.Equal(d.Round(2))
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("validation: register " + tag + ": " + err.Error())
	}
}

var codePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_\-]{0,39}$`)

// Validator wraps go-playground/validator. Field names in Violations follow the json tags.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// decimal.Decimal is validated as its float value so gte/lte work on money and percents.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	mustRegister(v, "percent", func(fl validator.FieldLevel) bool {
		return validPercent(decimal.NewFromFloat(fl.Field().Float()))
	})
	mustRegister(v, "code", func(fl validator.FieldLevel) bool {
		return codePattern.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
	return &Validator{v: v}
}

// Struct validates s and returns the failing fields keyed by json name.
func (val *Validator) Struct(s any) Violations {
	out := Violations{}
	err := val.v.Struct(s)
	if err == nil {
		return out
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range fieldErrs {
		out[fieldPath(fe.Namespace())] = fe.Tag()
	}
	return out
}

// Check validates s and returns a validation apperr, or nil.
func (val *Validator) Check(s any) error {
	return val.Struct(s).Err()
}

// fieldPath drops the root struct name: "createInput.lines[0].quantity" -> "lines[0].quantity".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
