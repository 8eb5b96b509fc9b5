// Package httpx traduz erros de negócio e de binding em respostas gin
package httpx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-fulfillment/internal/apperr"
)

// StatusOf devolve o código HTTP correspondente ao tipo do erro
func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrGateway):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError escreve a resposta de erro. Erros sem tipo viram 500 com
// mensagem genérica; o erro original vai apenas para o log.
func WriteError(c *gin.Context, log *zap.Logger, err error) {
	status := StatusOf(err)

	if status == http.StatusInternalServerError {
		log.Error("❌ Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": err.Error()}
	if details := apperr.DetailsOf(err); len(details) > 0 {
		body["details"] = details
	}
	if code := apperr.CodeOf(err); code != "" {
		body["error_code"] = code
	}
	c.JSON(status, body)
}

// BindError escreve o 400 de um ShouldBindJSON que falhou, com um detalhe
// por campo quando o erro vem do validator
func BindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	details := make([]apperr.Detail, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		details = append(details, apperr.Detail{
			Path: fieldErr.Field(),
			Info: validationMessage(fieldErr),
		})
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": details})
}

func validationMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fieldErr.Field() + " is required"
	case "min", "gte":
		return fieldErr.Field() + " must be at least " + fieldErr.Param()
	case "max", "lte":
		return fieldErr.Field() + " must be at most " + fieldErr.Param()
	case "gt":
		return fieldErr.Field() + " must be greater than " + fieldErr.Param()
	case "oneof":
		return fieldErr.Field() + " must be one of: " + fieldErr.Param()
	case "uuid":
		return fieldErr.Field() + " must be a valid UUID"
	default:
		return fieldErr.Field() + " is invalid"
	}
}

// Health responde o health check de um serviço
func Health(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": service})
	}
}
