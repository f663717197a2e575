// Package result provides the envelope use cases return for expected
// outcomes. Business failures such as a missing entity or a duplicate key are
// Results with a failure code; unexpected failures stay Go errors.
package result

import "net/http"

// Result carries the outcome of a use case with an HTTP-style status code.
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
	Data    *T     `json:"data,omitempty"`
}

// Ok returns a successful Result. A zero code defaults to 200.
func Ok[T any](code int, data *T) Result[T] {
	if code == 0 {
		code = http.StatusOK
	}
	return Result[T]{Success: true, Code: code, Data: data}
}

// OkWithMessage returns a successful Result that also carries a message.
func OkWithMessage[T any](code int, message string, data *T) Result[T] {
	r := Ok(code, data)
	r.Message = message
	return r
}

// Fail returns a failed Result without data.
func Fail[T any](code int, message string) Result[T] {
	return Result[T]{Success: false, Code: code, Message: message}
}

// FailWithData returns a failed Result that keeps data for debugging.
func FailWithData[T any](code int, message string, data *T) Result[T] {
	r := Fail[T](code, message)
	r.Data = data
	return r
}

func (r Result[T]) IsSuccess() bool {
	return r.Success
}
