package cwidget

import (
	"fmt"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const DateLayout = "2006-01-02"

// Input is a labelled entry that only reports values accepted by Validator.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText   string
	Placeholder string

	DefaultValue T
	value        T

	OnChanged   func(T)
	OnSubmitted func(T)

	Validator func(string) (T, error)
}

func newInput[T any](label, placeholder string, defaultValue T, validator func(string) (T, error)) *Input[T] {
	input := &Input[T]{
		LabelText:    label,
		Placeholder:  placeholder,
		DefaultValue: defaultValue,
		value:        defaultValue,
		Validator:    validator,
	}

	input.labelWidget = widget.NewLabel(label)
	input.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	input.entryWidget = widget.NewEntry()
	input.entryWidget.SetPlaceHolder(placeholder)

	input.errorWidget = widget.NewLabel("")
	input.errorWidget.Hidden = true
	input.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	input.errorWidget.Importance = widget.DangerImportance

	input.entryWidget.OnChanged = func(s string) {
		res, err := input.Validator(s)
		input.SetError(err)

		if err == nil {
			input.value = res
			if input.OnChanged != nil {
				input.OnChanged(res)
			}
		}
	}

	input.entryWidget.OnSubmitted = func(s string) {
		res, err := input.Validator(s)
		input.SetError(err)

		if err == nil && input.OnSubmitted != nil {
			input.OnSubmitted(res)
		}
	}

	input.ExtendBaseWidget(input)

	return input
}

// NewDateInput accepts YYYY-MM-DD or an empty string, which yields "".
func NewDateInput(label, placeholder string, onChanged func(string)) *Input[string] {
	input := newInput(label, placeholder, "", func(s string) (string, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", nil
		}

		if _, err := time.Parse(DateLayout, s); err != nil {
			return "", fmt.Errorf("expected a date like %s", time.Now().Format(DateLayout))
		}
		return s, nil
	})
	input.OnChanged = onChanged

	return input
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

// Value is the last accepted value.
func (item *Input[T]) Value() T {
	return item.value
}

// Valid reports whether the current text passes validation.
func (item *Input[T]) Valid() bool {
	return item.errorWidget.Hidden
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

func (item *Input[T]) SetText(text string) {
	item.entryWidget.SetText(text)
}
