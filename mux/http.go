package mux

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// ServeHTTP decodes the request, dispatches it and writes the response.
// Implements http.Handler per RFC 9110.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := a.decodeRequest(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		status := http.StatusBadRequest
		if errors.As(err, &maxErr) {
			// RFC 9110 Section 15.5.14
			status = http.StatusRequestEntityTooLarge
		}

		a.logger().Debug("decode request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)

		if werr := Text(status, http.StatusText(status)).Write(w); werr != nil {
			a.logger().Debug("write response", zap.Error(werr))
		}
		return
	}

	resp := a.Dispatch(r.Context(), req)
	if err := resp.Write(w); err != nil {
		a.logger().Debug("write response",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err),
		)
	}
}

// decodeRequest converts r into a Request. The path is cleaned of dot
// segments per RFC 3986 Section 5.2.4, keeping a trailing slash.
func (a *App) decodeRequest(w http.ResponseWriter, r *http.Request) (Request, error) {
	req := Request{
		Method: r.Method,
		Path:   cleanPath(r.URL.Path),
		Header: r.Header,
		Query:  r.URL.Query(),
	}

	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}

	body := r.Body
	if a.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, a.MaxBodyBytes)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return req, err
	}
	req.Body = data

	return req, nil
}
