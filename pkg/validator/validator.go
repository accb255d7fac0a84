package validator

import (
	"errors"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/printstock/internal/domain"
)

var validate = validator.New()

func init() {
	// decimal.Decimal se valida como float64 para que gt/gte/lte funcionen.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// Struct valida data según sus tags `validate` y devuelve un *domain.ValidationError
// con todos los campos inválidos, o nil.
func Struct(data any) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &domain.ValidationError{Fields: make([]domain.FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, domain.FieldError{
			Field: fe.StructNamespace(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}
