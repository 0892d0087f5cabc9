package parser

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"drivers/internal/model"
)

// newRowValidator validator for the typed rows in model; error field names use the `field` tag
func newRowValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("field"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("plate", func(fl validator.FieldLevel) bool {
		return IsPlateNumber(fl.Field().String())
	})
	return v
}

// validateRow checks a typed row; the first failing field becomes the skip reason
func validateRow(v *validator.Validate, row any) *SkipReason {
	err := v.Struct(row)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &SkipReason{Code: model.CodeInvalidValue, Reason: err.Error()}
	}
	fe := verrs[0]
	field := fe.Field()
	if fe.Tag() == "required" {
		return &SkipReason{Field: field, Code: model.CodeMissingRequiredField, Reason: fmt.Sprintf("required field %s is empty", field)}
	}
	return &SkipReason{
		Field:  field,
		Code:   codeForField(fe.Tag(), field),
		Reason: fmt.Sprintf("%s %v failed %s check", field, fe.Value(), fe.Tag()),
	}
}

func codeForField(tag, field string) string {
	switch {
	case tag == "plate":
		return model.CodeInvalidPlateNumber
	case field == "date" || field == "arrivalTime" || field == "timestamp":
		return model.CodeInvalidDate
	case field == "checkIn" || field == "checkOut":
		return model.CodeInvalidTime
	}
	return model.CodeInvalidValue
}
