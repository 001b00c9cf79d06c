package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var registerOnce sync.Once

// RegisterValidators installs the slotdate and slottime tags on gin's validator
// and reports fields by their json name.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("slotdate", func(fl validator.FieldLevel) bool {
			_, err := model.NormalizeDate(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("slottime", func(fl validator.FieldLevel) bool {
			_, err := model.NormalizeTime(fl.Field().String())
			return err == nil
		})
	})
}

var messages = map[string]string{
	"required":        "field is required",
	"required_if":     "field is required",
	"required_unless": "field is required",
	"min":             "value is too small",
	"max":             "value is too long",
	"oneof":           "value is not allowed",
	"slotdate":        "date must be YYYY-MM-DD",
	"slottime":        "time must look like 09:30 AM",
}

// ValidationErrors flattens a binding error into per-field messages. Errors that
// did not come from the validator yield nil.
func ValidationErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := messages[e.Tag()]
		if !ok {
			msg = fmt.Sprintf("failed %s validation", e.Tag())
		}
		out = append(out, ValidationError{Field: e.Field(), Message: msg})
	}
	return out
}
