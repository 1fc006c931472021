package auth

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/orderdesk/go-auth/middleware/jwtware"
)

// RouteAuthenticator protects routes with bearer tokens verified by an
// Authenticator.
type RouteAuthenticator struct {
	auth         Authenticator
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	if auther == nil {
		return nil, goerrors.New("authenticator is required", goerrors.CategoryBadInput)
	}

	a := &RouteAuthenticator{
		auth:   auther,
		cfg:    cfg,
		Logger: defLogger{},
	}

	a.ErrorHandler = MakeErrorHandler(a.Logger)

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	a.ErrorHandler = MakeErrorHandler(a.Logger)
	return a
}

// ProtectedRoute returns a middleware that verifies the request token and
// stores the Principal under the configured context key. A nil errorHandler
// uses the authenticator's ErrorHandler.
func (a *RouteAuthenticator) ProtectedRoute(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = a.ErrorHandler
	}

	return jwtware.New(jwtware.Config{
		ErrorHandler: errorHandler,
		AuthScheme:   a.cfg.GetAuthScheme(),
		ContextKey:   a.cfg.GetContextKey(),
		TokenLookup:  a.cfg.GetTokenLookup(),
		Authenticate: func(ctx context.Context, token string) (any, error) {
			principal, err := a.auth.Authenticate(ctx, token)
			if err != nil {
				return nil, err
			}
			return principal, nil
		},
		ContextEnricher: func(ctx context.Context, principal any) context.Context {
			if p, ok := principal.(*Principal); ok {
				return WithPrincipal(ctx, p)
			}
			return ctx
		},
	})
}

// ErrorBody is the JSON error envelope
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code     int               `json:"code"`
	TextCode string            `json:"text_code"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// ErrorResponse maps err to its status code and response body. Errors
// outside the auth taxonomy are reported as internal errors without detail.
func ErrorResponse(err error) (int, ErrorBody) {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		err = ErrTokenMalformed
	}

	kind := KindOf(err)
	status := kind.Class().Code()

	detail := ErrorDetail{
		Code:     status,
		TextCode: string(kind),
		Message:  ErrInternal.Message,
	}

	var richErr *goerrors.Error
	if kind != KindInternal && goerrors.As(err, &richErr) {
		detail.Message = richErr.Message
		if fields, ok := richErr.Metadata["fields"].(map[string]string); ok {
			detail.Fields = fields
		}
	}

	return status, ErrorBody{Error: detail}
}

// MakeErrorHandler writes errors as JSON. Internal errors are logged with
// their cause.
func MakeErrorHandler(logger Logger) func(router.Context, error) error {
	logger = normalizeLogger(logger)
	return func(c router.Context, err error) error {
		status, body := ErrorResponse(err)

		if body.Error.TextCode == string(KindInternal) {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) && richErr.Source != nil {
				logger.Error("request failed", "error", richErr.Source, "details", print.MaybePrettyJSON(richErr.Metadata))
			} else {
				logger.Error("request failed", "error", err)
			}
		} else {
			logger.Debug("request rejected", "text_code", body.Error.TextCode, "message", body.Error.Message)
		}

		return c.JSON(status, body)
	}
}
