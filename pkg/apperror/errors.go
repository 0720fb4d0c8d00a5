package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
// Message is the client-facing text; Err stays internal.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Money Movement (TXN) ----

func ErrInvalidAmount() *AppError {
	return New("TXN_001", "Monto inválido", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("TXN_002", "Saldo insuficiente", http.StatusBadRequest)
}

// ErrLimitExceeded reports a daily or monthly cap breach. The message
// depends on the transaction type, matching the external contract.
func ErrLimitExceeded(depositSide bool) *AppError {
	if depositSide {
		return New("TXN_003", "Límite de depósito excedido", http.StatusBadRequest)
	}
	return New("TXN_003", "Límite de retiro excedido", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("TXN_004", fmt.Sprintf("%s no encontrado", entity), http.StatusNotFound)
}

func ErrTransactionNotAuthorizable() *AppError {
	return New("TXN_005", "No se puede autorizar", http.StatusBadRequest)
}

// ---- Cancellation Workflow (CAN) ----

func ErrSameAuthorizerNotAllowed() *AppError {
	return New("CAN_001", "El mismo autorizador no puede registrar ambas autorizaciones", http.StatusBadRequest)
}

func ErrNotAuthorizable() *AppError {
	return New("CAN_002", "No se puede autorizar", http.StatusBadRequest)
}

func ErrCancellationExists() *AppError {
	return New("CAN_003", "La transacción ya tiene una solicitud de cancelación", http.StatusConflict)
}

// ---- Authentication & Permissions (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Credenciales inválidas", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "El nombre de usuario ya existe", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Token inválido o expirado", http.StatusUnauthorized)
}

func ErrNotAuthorized() *AppError {
	return New("AUTH_004", "No tienes permiso para realizar esta acción", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Demasiadas solicitudes", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error. The limit
// tracker and every money path rely on this to fail closed: an
// unexpected error aborts the whole operation.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Error interno del servidor", http.StatusInternalServerError, err)
}

// Validation returns a request-validation error with a custom message.
func Validation(message string) *AppError {
	return New("TXN_001", message, http.StatusBadRequest)
}
