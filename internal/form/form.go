// Package form implements a generic input form lifecycle: raw field values,
// per-field errors and touched flags, and a guarded submit step.
//
// The engine knows nothing about validation rules. Each form instance is
// given a ValidateFunc by its caller; the engine only decides when it runs and
// what its result blocks.
package form

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// FormErrorKey holds errors that belong to the form as a whole, such as a
// field value that cannot be converted to its declared type.
const FormErrorKey = ""

// ErrSubmitInProgress is returned when Submit is called while a previous
// submit is still running.
var ErrSubmitInProgress = errors.New("form: submit already in progress")

// Errors maps field names to validation messages.
type Errors map[string]string

// ValidateFunc returns the validation errors for values. An empty or nil
// result means the values are valid. It must not call back into the form.
type ValidateFunc[T any] func(values T) Errors

// SubmitFunc receives the decoded values of a valid form.
type SubmitFunc[T any] func(ctx context.Context, values T) error

// State is a point-in-time copy of a form.
type State[T any] struct {
	Values     T
	Errors     Errors
	Touched    map[string]bool
	Submitting bool
}

// Form tracks the values of one input form. Values are kept as a raw field
// map and decoded into T on demand, so changes to fields T does not declare
// are recorded rather than rejected.
type Form[T any] struct {
	mu         sync.Mutex
	validate   ValidateFunc[T]
	raw        map[string]any
	errors     Errors
	touched    map[string]bool
	submitting bool
}

// New constructs a form seeded with initial. validate may be nil.
func New[T any](initial T, validate ValidateFunc[T]) (*Form[T], error) {
	f := &Form[T]{validate: validate}
	if err := f.Initialize(initial); err != nil {
		return nil, err
	}
	return f, nil
}

// Initialize replaces all values with initial and clears errors and touched
// flags.
func (f *Form[T]) Initialize(initial T) error {
	raw, err := encode(initial)
	if err != nil {
		return fmt.Errorf("form: encode initial values: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.raw = raw
	f.errors = Errors{}
	f.touched = make(map[string]bool)
	return nil
}

// OnFieldChange records a new raw value for name and marks it touched. Field
// names unknown to T are accepted.
func (f *Form[T]) OnFieldChange(name string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.raw[name] = value
	f.touched[name] = true
}

// Values decodes the current raw values into T.
func (f *Form[T]) Values() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return decode[T](f.raw)
}

// Raw returns a copy of the raw field values, including unknown fields.
func (f *Form[T]) Raw() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	return maps.Clone(f.raw)
}

// Errors returns the result of the most recent validation pass.
func (f *Form[T]) Errors() Errors {
	f.mu.Lock()
	defer f.mu.Unlock()

	return maps.Clone(f.errors)
}

// Touched reports whether name has been changed since the last Initialize.
func (f *Form[T]) Touched(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.touched[name]
}

// TouchedFields returns a copy of the touched flags.
func (f *Form[T]) TouchedFields() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return maps.Clone(f.touched)
}

// FieldError returns the message to display for name. Errors on untouched
// fields are hidden.
func (f *Form[T]) FieldError(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.touched[name] {
		return ""
	}
	return f.errors[name]
}

// Submitting reports whether a submit handler is currently running.
func (f *Form[T]) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.submitting
}

// State returns a copy of the form. Values holds whatever could be decoded.
func (f *Form[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, _ := decode[T](f.raw)
	return State[T]{
		Values:     values,
		Errors:     maps.Clone(f.errors),
		Touched:    maps.Clone(f.touched),
		Submitting: f.submitting,
	}
}

// Submit validates the current values and, when they are valid, runs
// onSubmit with them.
//
// Validation errors replace the previous errors entirely. When any are
// present Submit returns (false, nil) without calling onSubmit. Otherwise
// the form is marked submitting until onSubmit returns or panics, and Submit
// returns (true, err) with the handler's error. A Submit issued while another
// is running fails with ErrSubmitInProgress and changes nothing.
func (f *Form[T]) Submit(ctx context.Context, onSubmit SubmitFunc[T]) (bool, error) {
	values, ok, err := f.begin()
	if err != nil || !ok {
		return false, err
	}

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	if onSubmit == nil {
		return true, nil
	}
	return true, onSubmit(ctx, values)
}

// begin validates the current values and, when they are valid, marks the
// form submitting. The lock is released even if the validator panics.
func (f *Form[T]) begin() (values T, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return values, false, ErrSubmitInProgress
	}

	values, decodeErr := decode[T](f.raw)
	var errs Errors
	switch {
	case decodeErr != nil:
		errs = Errors{FormErrorKey: decodeErr.Error()}
	case f.validate != nil:
		errs = f.validate(values)
	}
	f.errors = maps.Clone(errs)
	if f.errors == nil {
		f.errors = Errors{}
	}
	if len(f.errors) > 0 {
		return values, false, nil
	}

	f.submitting = true
	return values, true, nil
}

func encode[T any](values T) (map[string]any, error) {
	raw := make(map[string]any)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &raw,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(values); err != nil {
		return nil, err
	}
	return raw, nil
}

func decode[T any](raw map[string]any) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(raw); err != nil {
		return out, err
	}
	return out, nil
}
