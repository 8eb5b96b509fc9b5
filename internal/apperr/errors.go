// Package apperr define a taxonomia de erros compartilhada pelos serviços.
package apperr

import (
	"errors"
	"fmt"
)

// Tipos de erro. Use errors.Is contra eles para decidir o código HTTP.
var (
	ErrValidation   = errors.New("validation error")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
	ErrGateway      = errors.New("gateway error")
	ErrNotification = errors.New("notification error")
)

// Detail descreve um campo ou item inválido
type Detail struct {
	Path string `json:"path"`
	Info string `json:"info"`
}

// Error é um erro de negócio com tipo, mensagem e detalhes opcionais
type Error struct {
	Kind    error
	Message string
	Code    string
	Details []Detail
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Validation cria um ValidationError
func Validation(format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails cria um ValidationError com detalhes por item
func ValidationWithDetails(message string, details []Detail) *Error {
	return &Error{Kind: ErrValidation, Message: message, Details: details}
}

// InvalidState cria um InvalidStateError para uma operação protegida
func InvalidState(entity, operation, current string) *Error {
	return &Error{
		Kind:    ErrInvalidState,
		Message: fmt.Sprintf("%s cannot be %s (current status: %s)", entity, operation, current),
	}
}

// NotFound cria um NotFoundError
func NotFound(entity, id string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// Gateway cria um GatewayError com o código devolvido pelo gateway
func Gateway(code, message string) *Error {
	return &Error{Kind: ErrGateway, Code: code, Message: message}
}

// Notification cria um NotificationError. Nunca deve sair do notifier.
func Notification(target string, cause error) *Error {
	return &Error{Kind: ErrNotification, Message: fmt.Sprintf("notify %s: %v", target, cause)}
}

// CodeOf devolve o código associado ao erro, se houver
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// DetailsOf devolve os detalhes associados ao erro, se houver
func DetailsOf(err error) []Detail {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}
