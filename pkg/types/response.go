// Package types holds the wire envelopes shared by the HTTP API and its Go client.
package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// DataEnvelope is the typed decode side of SuccessEnvelope.
type DataEnvelope[T any] struct {
	Data T `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
