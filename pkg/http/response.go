package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes v as the JSON body with statusCode.
func DataResponse(c echo.Context, statusCode int, v interface{}) error {
	return c.JSON(statusCode, v)
}

func SuccessResponse(c echo.Context, v interface{}) error {
	return DataResponse(c, http.StatusOK, v)
}

// RawJSONResponse writes an already encoded JSON body.
func RawJSONResponse(c echo.Context, statusCode int, body []byte) error {
	return c.JSONBlob(statusCode, body)
}

func ErrorResponse(c echo.Context, statusCode int, message string, details interface{}) error {
	return c.JSON(statusCode, ErrorBody{Error: message, Details: details})
}

func InternalServerErrorResponse(c echo.Context) error {
	return ErrorResponse(c, http.StatusInternalServerError, "internal server error", nil)
}

// AppErrorResponse renders an AppError, or a generic 500 for anything else.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return ErrorResponse(c, appErr.Status, appErr.Message, appErr.Details)
	}
	return InternalServerErrorResponse(c)
}
