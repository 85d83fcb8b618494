package api

import (
	"errors"
	"net/http"

	"MacroPull/internal/domain/models"
	"MacroPull/internal/usecase"
	xhttp "MacroPull/pkg/http"
)

// ErrorKind labels err for metrics and logs.
func ErrorKind(err error) string {
	var (
		unsupported *models.UnsupportedProviderError
		missing     *models.MissingParameterError
		invalid     *models.InvalidParameterError
		config      *models.ConfigurationError
		upstream    *models.UpstreamError
		parse       *models.ParseError
		empty       *models.EmptyResultError
		chain       *usecase.ChainError
	)
	switch {
	case errors.As(err, &unsupported):
		return "unsupported_provider"
	case errors.As(err, &missing):
		return "missing_parameter"
	case errors.As(err, &invalid):
		return "invalid_parameter"
	case errors.As(err, &config):
		return "configuration"
	case errors.As(err, &chain):
		return "fallback_exhausted"
	case errors.As(err, &upstream):
		return "upstream"
	case errors.As(err, &parse):
		return "parse"
	case errors.As(err, &empty):
		return "empty"
	}
	return "internal"
}

// ToAppError maps the domain taxonomy onto HTTP: caller mistakes are 400,
// everything the upstreams or configuration caused is 500.
func ToAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if models.IsRequestError(err) {
		return xhttp.BadRequestError(err.Error()).WithError(err)
	}

	out := xhttp.NewAppError("ERR_"+ErrorKind(err), err.Error(), http.StatusInternalServerError).WithError(err)
	var upstream *models.UpstreamError
	if errors.As(err, &upstream) {
		out.WithDetails(map[string]interface{}{
			"provider": upstream.Provider,
			"status":   upstream.Status,
		})
	}
	return out
}
