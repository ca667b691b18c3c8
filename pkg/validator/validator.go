package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const clockLayout = "15:04"

var (
	inviteCodePattern = regexp.MustCompile(`^[0-9A-Za-z]{4,16}$`)

	engine     *validator.Validate
	engineOnce sync.Once

	// rules are the booking-specific tags layered over the stock validators.
	rules = map[string]validator.Func{
		"invitecode": func(fl validator.FieldLevel) bool {
			return inviteCodePattern.MatchString(strings.TrimSpace(fl.Field().String()))
		},
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		"clockafter": clockAfter,
	}
)

// FieldError is one failed rule on one field, addressed by its JSON name.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Message renders the failure for API clients.
func (f FieldError) Message() string {
	field := humanise(f.Field)
	switch f.Tag {
	case "required", "required_without", "notblank":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, f.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, f.Param)
	case "gtefield":
		return fmt.Sprintf("%s must not be lower than %s", field, humanise(f.Param))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, f.Param)
	case "datetime":
		return fmt.Sprintf("%s must match %s", field, f.Param)
	case "clockafter":
		return fmt.Sprintf("%s must be later than %s", field, humanise(f.Param))
	case "invitecode":
		return field + " is not a valid invite code"
	}
	if f.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, f.Tag, f.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, f.Tag)
}

// ValidationErrors collects every failure found on a payload.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(v))
	for i, f := range v {
		msgs[i] = f.Message()
	}
	return strings.Join(msgs, "; ")
}

// Fields reports the JSON names that failed, in payload order.
func (v ValidationErrors) Fields() []string {
	out := make([]string, 0, len(v))
	for _, f := range v {
		out = append(out, f.Field)
	}
	return out
}

// ValidateStruct runs the struct's validate tags. Rule failures come back as
// ValidationErrors; anything else (a nil or non-struct argument) is returned as is.
func ValidateStruct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		param := fe.Param()
		if fe.Tag() == "clockafter" || fe.Tag() == "gtefield" {
			param = crossFieldName(s, param)
		}
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: param})
	}
	return out
}

// RegisterValidation adds a custom tag to the shared validator.
func RegisterValidation(tag string, fn validator.Func) error {
	return instance().RegisterValidation(tag, fn)
}

func instance() *validator.Validate {
	engineOnce.Do(func() {
		engine = validator.New(validator.WithRequiredStructEnabled())
		engine.RegisterTagNameFunc(jsonName)
		for tag, fn := range rules {
			if err := engine.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("validator: register %s: %v", tag, err))
			}
		}
	})
	return engine
}

// clockAfter passes when an HH:MM field is strictly later than the sibling
// named by the param. Unparseable values are left to the datetime rule.
func clockAfter(fl validator.FieldLevel) bool {
	other := fl.Parent().FieldByName(fl.Param())
	if !other.IsValid() || other.Kind() != reflect.String {
		return false
	}
	end, err := time.Parse(clockLayout, strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return true
	}
	start, err := time.Parse(clockLayout, strings.TrimSpace(other.String()))
	if err != nil {
		return true
	}
	return end.After(start)
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// crossFieldName maps a cross-field param (a Go field name) to its JSON name
// on the top-level payload.
func crossFieldName(payload any, goName string) string {
	t := reflect.TypeOf(payload)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return goName
	}
	if fld, ok := t.FieldByName(goName); ok {
		return jsonName(fld)
	}
	return goName
}

func humanise(name string) string {
	if name == "" {
		return "field"
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}
