package listing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amishk599/boardfeed/internal/browser"
	"github.com/amishk599/boardfeed/internal/model"
)

// errEmpty means the element was found but carried no text.
var errEmpty = errors.New("empty text")

// Field is the outcome of one optional lookup on a listing entry.
type Field struct {
	Value   string
	Present bool
	Err     error
}

// Or returns the value when present and def otherwise.
func (f Field) Or(def string) string {
	if f.Present {
		return f.Value
	}
	return def
}

func present(v string) Field { return Field{Value: v, Present: true} }

func absent(err error) Field { return Field{Err: err} }

// textOf reads the trimmed text of the first match of selector under scope.
func textOf(scope browser.Element, selector string) Field {
	if scope == nil {
		return absent(browser.ErrNotFound)
	}
	el, err := scope.Find(selector)
	if err != nil {
		return absent(err)
	}
	return textField(el)
}

func textField(el browser.Element) Field {
	text, err := el.Text()
	if err != nil {
		return absent(err)
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return absent(errEmpty)
	}
	return present(text)
}

// fieldFailure turns an absent field into a report entry.
func fieldFailure(stub model.JobStub, name string, f Field) model.Failure {
	ferr := &model.FieldError{JobID: stub.JobID, Field: name, Err: f.Err}
	return model.Failure{
		Stage:   model.StageField,
		JobID:   stub.JobID,
		Link:    stub.DetailLink,
		Field:   name,
		Message: ferr.Error(),
	}
}

func pageFailure(stage model.Stage, page int, err error) model.Failure {
	return model.Failure{
		Stage:   stage,
		Message: fmt.Sprintf("page %d: %v", page, err),
	}
}
