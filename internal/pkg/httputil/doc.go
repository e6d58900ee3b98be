// Package httputil provides the shared response envelope for all handlers.
//
// Every handler writes through these helpers so that clients always see
// the same shape: {"success": true, "data": ...} or
// {"success": false, "message": "...", "errors": {...}}.
// Field-validation failures are application failures, not transport
// failures, so they go out with HTTP 200 and success=false.
package httputil
