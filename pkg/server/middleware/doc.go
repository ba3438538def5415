// Package middleware provides HTTP middleware for the logstage ingest server.
//
// Every middleware follows the standard pattern func(http.Handler) http.Handler,
// so they chain as handler = mw1(mw2(handler)). The server applies them as
//
//	handler := middleware.BodySizeLimit(maxBytes)(mux)
//	handler = middleware.Metrics(recorder)(handler)
//	handler = middleware.Logging(logger)(handler)
//	handler = middleware.RequestID()(handler)
//	handler = middleware.PanicRecovery(logger)(handler)
//
// with PanicRecovery outermost.
package middleware
