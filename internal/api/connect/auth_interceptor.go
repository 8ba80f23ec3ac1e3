package connect

import (
	"context"
	"crypto/subtle"
	"net/http"

	"connectrpc.com/connect"
)

const (
	// ControlTokenHeader is the header carrying the control token.
	ControlTokenHeader = "X-Control-Token"
)

// NewTokenAuthInterceptor creates an interceptor that validates the control
// token on unary calls. An empty token disables the check.
func NewTokenAuthInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if !authorized(req.Header(), token) {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}
			return next(ctx, req)
		}
	}
}

func authorized(header http.Header, token string) bool {
	if token == "" {
		return true
	}
	got := header.Get(ControlTokenHeader)
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// tokenSetter attaches the control token to outgoing requests.
type tokenSetter struct {
	token string
}

func (t tokenSetter) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if t.token != "" {
			req.Header().Set(ControlTokenHeader, t.token)
		}
		return next(ctx, req)
	}
}

func (t tokenSetter) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		if t.token != "" {
			conn.RequestHeader().Set(ControlTokenHeader, t.token)
		}
		return conn
	}
}

func (t tokenSetter) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
