package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	return v
}

// decodeForm fills dst from a JSON body or from posted form values, matching
// fields by their json names.
func decodeForm(r *http.Request, dst interface{}) error {
	var input interface{}
	if httputil.IsJSONRequest(r) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return fmt.Errorf("invalid request body: %w", err)
		}
		input = body
	} else {
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("invalid form: %w", err)
		}
		values := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			values[k] = r.PostForm.Get(k)
		}
		input = values
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// formLevel keys errors that belong to no single field.
const formLevel = "form"

// formErrors maps a field's json name to its error messages.
type formErrors map[string][]string

func (e formErrors) add(field, message string) {
	e[field] = append(e[field], message)
}

func (e formErrors) Empty() bool { return len(e) == 0 }

// check validates form and maps each failed rule, keyed "<field>.<tag>", to
// its message.
func (m *Module) check(form interface{}, messages map[string]string) formErrors {
	errs := formErrors{}
	err := m.validate.Struct(form)
	if err == nil {
		return errs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.add(formLevel, err.Error())
		return errs
	}
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		errs.add(fe.Field(), msg)
	}
	return errs
}

// checkLength adds the minimum length error for field when value is set but
// shorter than the configured minimum.
func (m *Module) checkLength(errs formErrors, field, value, message string) {
	if value == "" {
		return
	}
	if err := m.validate.Var(value, fmt.Sprintf("min=%d", m.cfg.PasswordMinLength)); err != nil {
		errs.add(field, message)
	}
}

// formField is what the field template renders.
type formField struct {
	Name        string
	Placeholder string
	Type        string
	Value       string
	Errors      []string
}

// formPage is embedded into the recovery page data.
type formPage struct {
	values map[string]string
	errors formErrors
	label  func(string) string
}

func (p formPage) Field(name, placeholder, typ string) formField {
	return formField{
		Name:        name,
		Placeholder: p.label(placeholder),
		Type:        typ,
		Value:       p.values[name],
		Errors:      p.errors[name],
	}
}

// jsonEnvelope is the body of JSON answers from the recovery forms.
type jsonEnvelope struct {
	Meta     jsonMeta    `json:"meta"`
	Response interface{} `json:"response"`
}

type jsonMeta struct {
	Code int `json:"code"`
}

func writeFormJSON(w http.ResponseWriter, code int, response interface{}) {
	httputil.WriteJSON(w, code, jsonEnvelope{Meta: jsonMeta{Code: code}, Response: response})
}

func writeFormErrors(w http.ResponseWriter, errs formErrors) {
	writeFormJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": errs})
}

// FormErrors returns the errors that belong to no single field.
func (p formPage) FormErrors() []string { return p.errors[formLevel] }
