package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/coursehub/coursehub-backend/pkg/errors"
	"github.com/coursehub/coursehub-backend/pkg/money"
)

// DefaultMaxBodyBytes bounds JSON bodies that do not set their own limit.
const DefaultMaxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("price", validPrice)
	_ = v.RegisterValidation("objectkey", validObjectKey)
	return v
}

// price accepts a non-negative major-unit amount with at most two decimals.
func validPrice(fl validator.FieldLevel) bool {
	_, err := money.ParseMajor(fl.Field().String())
	return err == nil
}

// objectkey accepts relative storage keys without traversal segments.
func validObjectKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsAny(key, "\\\x00") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

// DecodeJSONBody reads at most DefaultMaxBodyBytes into dest and validates it.
func DecodeJSONBody(r *http.Request, dest any) error {
	return DecodeJSONBodyLimit(r, dest, DefaultMaxBodyBytes)
}

// DecodeJSONBodyLimit is DecodeJSONBody with an explicit size cap. Unknown
// fields and trailing data are rejected.
func DecodeJSONBodyLimit(r *http.Request, dest any, maxBytes int64) error {
	body := io.LimitReader(r.Body, maxBytes+1)
	defer io.Copy(io.Discard, r.Body)

	raw, err := io.ReadAll(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body")
	}
	if int64(len(raw)) > maxBytes {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body too large").WithDetails(map[string]any{"max_bytes": maxBytes})
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}

	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": describeDecodeError(err)})
	}
	if decoder.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must hold a single JSON object")
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type)
	}
	return err.Error()
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
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
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date formatted " + fe.Param()
	case "price":
		return "must be a non-negative amount with at most two decimals"
	case "objectkey":
		return "must be a relative storage key"
	case "url":
		return "must be a valid URL"
	}
	return "is invalid"
}
