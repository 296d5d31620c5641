// Package models defines the API response envelope shared by HTTP handlers.
package models

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates the request succeeded.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates the request failed.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope returned by the HTTP surface.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success builds a success response with an optional result payload.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// SuccessWithMessage builds a success response with a message and payload.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Message: message, Result: result}
}

// Error builds an error response with the given message.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}
