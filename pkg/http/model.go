package http

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// ValidationError describes one rejected request parameter.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"dataset"`
	Message string                 `json:"message,omitempty" example:"dataset is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
