package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrConflict           = errors.New("conflicto con el estado actual")
	ErrInsufficientStock  = errors.New("stock insuficiente")
	ErrTransactionFailure = errors.New("la transacción no pudo confirmarse")
	ErrReservationClosed  = fmt.Errorf("la reserva ya no está activa: %w", ErrConflict)
)

// NotFoundError indica qué recurso faltó. errors.Is(err, ErrNotFound) es verdadero.
type NotFoundError struct {
	Resource string // material, reservation
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q no encontrado", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewMaterialNotFound construye el error para un material inexistente.
func NewMaterialNotFound(id string) error {
	return &NotFoundError{Resource: "material", ID: id}
}

// NewReservationNotFound construye el error para una reserva inexistente.
func NewReservationNotFound(id string) error {
	return &NotFoundError{Resource: "reserva", ID: id}
}

// InsufficientStockError lleva el contexto necesario para mostrar el faltante al usuario.
type InsufficientStockError struct {
	MaterialID   string
	MaterialName string
	Available    int64
	Requested    int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente de %q: disponible %d, solicitado %d",
		e.MaterialName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Shortfall es la diferencia entre lo solicitado y lo disponible.
func (e *InsufficientStockError) Shortfall() int64 {
	if e.Requested <= e.Available {
		return 0
	}
	return e.Requested - e.Available
}

// FieldError describe un campo que no pasó la validación.
type FieldError struct {
	Field string
	Rule  string
	Param string
}

// ValidationError agrupa los campos inválidos de una entrada.
type ValidationError struct {
	Fields []FieldError
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return "entrada inválida: " + e.Msg
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Param != "" {
			parts = append(parts, fmt.Sprintf("%s (%s=%s)", f.Field, f.Rule, f.Param))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", f.Field, f.Rule))
	}
	return "entrada inválida: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid construye un ValidationError con un mensaje libre.
func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransactionError envuelve la causa original del almacén cuando la transacción falla.
type TransactionError struct {
	Op        string // begin, commit, statement
	Cause     error
	retryable bool
}

// NewTransactionError construye el error; retryable marca conflictos de serialización o deadlocks.
func NewTransactionError(op string, cause error, retryable bool) *TransactionError {
	return &TransactionError{Op: op, Cause: cause, retryable: retryable}
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transacción (%s): %v", e.Op, e.Cause)
}

// Is permite errors.Is(err, ErrTransactionFailure) sin perder la causa original en Unwrap.
func (e *TransactionError) Is(target error) bool { return target == ErrTransactionFailure }

func (e *TransactionError) Unwrap() error { return e.Cause }

// Retryable indica si una lectura idempotente puede reintentarse.
// Un gasto nunca debe reintentarse sin volver a validar la disponibilidad.
func (e *TransactionError) Retryable() bool { return e.retryable }
