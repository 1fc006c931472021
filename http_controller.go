package auth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the auth endpoints on app
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.Register).
		SetName("auth.register")

	app.Post(controller.Routes.Login, controller.Login).
		SetName("auth.login")

	app.Post(controller.Routes.Refresh, controller.Refresh).
		SetName("auth.refresh")

	protected := controller.Middleware.ProtectedRoute(controller.ErrorHandler)

	app.Post(controller.Routes.Password, controller.ChangePassword, protected).
		SetName("auth.password")

	app.Get(controller.Routes.Me, controller.Me, protected).
		SetName("auth.me")

	return controller
}

type AuthControllerRoutes struct {
	Register string
	Login    string
	Refresh  string
	Password string
	Me       string
}

type AuthController struct {
	Logger       Logger
	Routes       *AuthControllerRoutes
	Auther       Authenticator
	Middleware   *RouteAuthenticator
	ContextKey   string
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

func WithAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithRouteAuthenticator(middleware *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Middleware = middleware
		return c
	}
}

func WithContextKey(key string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func WithErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

func WithRoutePrefix(prefix string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Routes = &AuthControllerRoutes{
			Register: prefix + "/register",
			Login:    prefix + "/login",
			Refresh:  prefix + "/refresh",
			Password: prefix + "/password",
			Me:       prefix + "/me",
		}
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger{},
		ContextKey: DefaultContextKey,
	}
	c = WithRoutePrefix("/auth")(c)

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = MakeErrorHandler(c.Logger)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Middleware == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

// AccountResponse is the public view of an account
type AccountResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	LastLogin string `json:"last_login,omitempty"`
}

func newAccountResponse(a *Account) AccountResponse {
	res := AccountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt: a.UpdatedAt.UTC().Format(timestampLayout),
	}
	if a.LastLogin != nil {
		res.LastLogin = a.LastLogin.UTC().Format(timestampLayout)
	}
	return res
}

const timestampLayout = time.RFC3339

func (a *AuthController) Register(ctx router.Context) error {
	payload := new(RegistrationRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("register bind error", "error", err)
		return a.ErrorHandler(ctx, validationError("invalid request body", nil))
	}

	account, err := a.Auther.Register(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, newAccountResponse(account))
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("login bind error", "error", err)
		return a.ErrorHandler(ctx, validationError("invalid request body", nil))
	}

	pair, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, pair)
}

func (a *AuthController) Refresh(ctx router.Context) error {
	payload := new(RefreshRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("refresh bind error", "error", err)
		return a.ErrorHandler(ctx, validationError("invalid request body", nil))
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, pair)
}

func (a *AuthController) ChangePassword(ctx router.Context) error {
	principal, ok := GetRouterPrincipal(ctx, a.ContextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrTokenMalformed)
	}

	payload := new(ChangePasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("change password bind error", "error", err)
		return a.ErrorHandler(ctx, validationError("invalid request body", nil))
	}

	err := a.Auther.ChangePassword(ctx.Context(), principal.AccountID, payload.Password, payload.NewPassword)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Status(http.StatusNoContent).SendString("")
}

func (a *AuthController) Me(ctx router.Context) error {
	principal, ok := GetRouterPrincipal(ctx, a.ContextKey)
	if !ok || principal.Account == nil {
		return a.ErrorHandler(ctx, ErrTokenMalformed)
	}

	return ctx.JSON(http.StatusOK, newAccountResponse(principal.Account))
}
