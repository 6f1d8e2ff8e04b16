// Package httputil provides shared HTTP response/request helpers.
//
// Handlers use these instead of writing to http.ResponseWriter directly so
// that every endpoint emits the same JSON shapes: a plain payload on
// success and the {error, code, details} envelope on failure.
package httputil
