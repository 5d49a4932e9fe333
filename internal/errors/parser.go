package errors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/brroMonta/gifting/internal/app/repository"
	"github.com/brroMonta/gifting/internal/app/service"
	"github.com/brroMonta/gifting/pkg/urlmeta"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ErrorInfo is the client-facing view of an error.
type ErrorInfo struct {
	Status  int    // HTTP status
	Code    string // code from codes.go
	Message string // safe to show to users
}

// ParseError maps service, repository and storage errors to a status, code and message.
// Internal details never leak into the message.
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Status:  http.StatusInternalServerError,
			Code:    InternalServerError,
			Message: "Something went wrong",
		}
	}

	// 1. Domain errors
	switch {
	case errors.Is(err, service.ErrSharedGiftMapNotFound):
		return ErrorInfo{http.StatusNotFound, ShareLinkInvalid, "This link is invalid or sharing has been turned off"}
	case errors.Is(err, service.ErrGiftMapItemNotFound):
		return ErrorInfo{http.StatusNotFound, GiftMapItemNotFound, "Gift item not found"}
	case errors.Is(err, service.ErrGiftMapNotFound):
		return ErrorInfo{http.StatusNotFound, GiftMapNotFound, "Gift map not found"}
	case errors.Is(err, service.ErrPersonNotFound):
		return ErrorInfo{http.StatusNotFound, PersonNotFound, "Person not found"}
	case errors.Is(err, service.ErrInvalidItemInput), errors.Is(err, service.ErrInvalidPersonInput):
		return ErrorInfo{http.StatusBadRequest, ValidationInvalidInput, strings.TrimSpace(lastSegment(err))}
	case errors.Is(err, service.ErrConflictRetryExhausted), errors.Is(err, repository.ErrVersionConflict):
		return ErrorInfo{http.StatusConflict, SyncConflict, "The gift map is busy, please retry"}
	case errors.Is(err, urlmeta.ErrInvalidURL):
		return ErrorInfo{http.StatusBadRequest, ValidationInvalidURL, "URL must be an absolute http or https address"}
	case errors.Is(err, urlmeta.ErrFetchFailed):
		return ErrorInfo{http.StatusBadGateway, InternalExternalAPI, "Could not load the page"}
	}

	// 2. GORM
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{http.StatusNotFound, ResourceNotFound, getNotFoundMessage(context)}
	}

	errLower := strings.ToLower(err.Error())

	// 3. Database constraint violations
	if strings.Contains(errLower, "duplicate key") || strings.Contains(errLower, "unique constraint") {
		return ErrorInfo{http.StatusConflict, ResourceAlreadyExists, "This record already exists"}
	}
	if strings.Contains(errLower, "null value") && strings.Contains(errLower, "not-null constraint") {
		return ErrorInfo{http.StatusBadRequest, ValidationRequired, "A required field is missing"}
	}

	// 4. Network
	if strings.Contains(errLower, "connection refused") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "timeout") {
		return ErrorInfo{http.StatusInternalServerError, InternalDatabaseError, "A backing service is unavailable, please retry"}
	}

	return ErrorInfo{http.StatusInternalServerError, InternalServerError, getDefaultErrorMessage(context)}
}

// FromServiceError writes the mapped error response.
func FromServiceError(c *gin.Context, err error, context string) {
	info := ParseError(err, context)
	RespondWithError(c, info.Status, info.Code, info.Message)
}

// lastSegment returns the innermost message of a "%w: detail" chain so
// validation errors keep their detail without the sentinel prefix.
func lastSegment(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func getNotFoundMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "person") {
		return "Person not found"
	}
	if strings.Contains(contextLower, "item") {
		return "Gift item not found"
	}
	if strings.Contains(contextLower, "gift map") {
		return "Gift map not found"
	}
	return "The requested resource was not found"
}

func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	if strings.Contains(contextLower, "create") || strings.Contains(contextLower, "add") {
		return "Could not save, please try again later"
	}
	if strings.Contains(contextLower, "update") {
		return "Could not update, please try again later"
	}
	if strings.Contains(contextLower, "delete") {
		return "Could not delete, please try again later"
	}
	return "Something went wrong, please try again later"
}
