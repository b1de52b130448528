package rider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tag validation and folds failures into ErrInvalidInput
func validateInput(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

// AddressPatch distinguishes an absent address from one explicitly cleared.
// JSON null or an all-empty object clears; an object with values replaces.
type AddressPatch struct {
	Present bool
	Value   *Address
}

// SetAddress builds a patch that replaces the address
func SetAddress(a Address) AddressPatch {
	if a.IsZero() {
		return AddressPatch{Present: true}
	}
	return AddressPatch{Present: true, Value: &a}
}

// ClearAddress builds a patch that removes the address
func ClearAddress() AddressPatch {
	return AddressPatch{Present: true}
}

// UnmarshalJSON marks the patch present whenever the key appears
func (p *AddressPatch) UnmarshalJSON(data []byte) error {
	p.Present = true
	p.Value = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var a Address
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if !a.IsZero() {
		p.Value = &a
	}
	return nil
}
