package server

import (
	"errors"
	"net/http"

	apikeydomain "github.com/WordpressDesigne/mpesaprompt/internal/apikey/domain"
	businessdomain "github.com/WordpressDesigne/mpesaprompt/internal/business/domain"
	customerdomain "github.com/WordpressDesigne/mpesaprompt/internal/customer/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/logger"
	paymentdomain "github.com/WordpressDesigne/mpesaprompt/internal/payment/domain"
	walletdomain "github.com/WordpressDesigne/mpesaprompt/internal/wallet/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not_found")
	ErrRateLimited  = errors.New("rate_limited")
	ErrInvalidInput = errors.New("invalid_request")
)

const (
	errorTypeInvalidRequest = "invalid_request_error"
	errorTypeAuthentication = "authentication_error"
	errorTypePermission     = "permission_error"
	errorTypeNotFound       = "not_found_error"
	errorTypeRateLimit      = "rate_limit_error"
	errorTypeGateway        = "gateway_error"
	errorTypeAPI            = "api_error"
)

type errorDetail struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

type errorResponse struct {
	Message string      `json:"message"`
	Error   errorDetail `json:"error"`
}

// ValidationError names the request field that failed.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func newValidationError(field, code, message string) error {
	return &ValidationError{Field: field, Code: code, Message: message}
}

func invalidRequestError() error {
	return newValidationError("", ErrInvalidInput.Error(), "invalid request body")
}

// AbortWithError writes the error response for err and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, body := errorPayload(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func errorPayload(err error) (int, errorResponse) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, errorResponse{
			Message: validation.Message,
			Error:   errorDetail{Type: errorTypeInvalidRequest, Code: validation.Code, Field: validation.Field},
		}
	}

	var gwErr *mpesa.GatewayError
	gatewayMessage := ""
	if errors.As(err, &gwErr) {
		gatewayMessage = gwErr.Message
	}

	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, apikeydomain.ErrInvalidKey):
		return respond(http.StatusUnauthorized, errorTypeAuthentication, ErrUnauthorized, "invalid or missing API key")
	case errors.Is(err, ErrForbidden):
		return respond(http.StatusForbidden, errorTypePermission, ErrForbidden, "forbidden")
	case errors.Is(err, businessdomain.ErrBusinessInactive):
		return respond(http.StatusForbidden, errorTypePermission, businessdomain.ErrBusinessInactive, "business is suspended")
	case errors.Is(err, ErrRateLimited):
		return respond(http.StatusTooManyRequests, errorTypeRateLimit, ErrRateLimited, "too many requests")

	case errors.Is(err, businessdomain.ErrNotConfigured):
		return respond(http.StatusBadRequest, errorTypeInvalidRequest, businessdomain.ErrNotConfigured, err.Error())
	case errors.Is(err, mpesa.ErrCredentialsRejected):
		return respond(http.StatusBadRequest, errorTypeGateway, mpesa.ErrCredentialsRejected, "payment gateway rejected the business credentials")
	case errors.Is(err, mpesa.ErrTokenUnavailable):
		return respond(http.StatusBadGateway, errorTypeGateway, mpesa.ErrTokenUnavailable, "could not authenticate with the payment gateway")
	case errors.Is(err, mpesa.ErrGatewayRejected):
		msg := gatewayMessage
		if msg == "" {
			msg = "payment gateway rejected the request"
		}
		return respond(http.StatusBadRequest, errorTypeGateway, mpesa.ErrGatewayRejected, msg)
	case errors.Is(err, mpesa.ErrGatewayUnavailable):
		return respond(http.StatusBadGateway, errorTypeGateway, mpesa.ErrGatewayUnavailable, "payment gateway unavailable")

	case errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, walletdomain.ErrNotFound),
		errors.Is(err, businessdomain.ErrNotFound),
		errors.Is(err, ErrNotFound):
		return respond(http.StatusNotFound, errorTypeNotFound, ErrNotFound, "resource not found")

	case errors.Is(err, paymentdomain.ErrInvalidAmount):
		return respond(http.StatusBadRequest, errorTypeInvalidRequest, paymentdomain.ErrInvalidAmount, "amount must be a positive whole number")
	case errors.Is(err, mpesa.ErrInvalidPhoneNumber):
		return respond(http.StatusBadRequest, errorTypeInvalidRequest, mpesa.ErrInvalidPhoneNumber, "invalid phone number")
	case errors.Is(err, paymentdomain.ErrInvalidIdempotencyKey),
		errors.Is(err, paymentdomain.ErrInvalidStatus),
		errors.Is(err, paymentdomain.ErrInvalidCheckoutRequest),
		errors.Is(err, paymentdomain.ErrInvalidBusiness):
		return respond(http.StatusBadRequest, errorTypeInvalidRequest, unwrapSentinel(err), err.Error())

	case errors.Is(err, paymentdomain.ErrPersistenceConflict):
		return respond(http.StatusInternalServerError, errorTypeAPI, paymentdomain.ErrPersistenceConflict, "request conflicted with a concurrent update")
	default:
		return respond(http.StatusInternalServerError, errorTypeAPI, errors.New("internal_error"), "internal server error")
	}
}

func respond(status int, errType string, code error, message string) (int, errorResponse) {
	return status, errorResponse{
		Message: message,
		Error:   errorDetail{Type: errType, Code: code.Error()},
	}
}

func unwrapSentinel(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
