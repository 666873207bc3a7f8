package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/service"
	"github.com/Skotchmaster/auth_center/internal/transport"
	"github.com/labstack/echo/v4"
)

// serve binds the request into T, runs call and renders its reply. Errors
// from call are infrastructure failures and go to the error handler.
func serve[T any](c echo.Context, handler string, call func(context.Context, T) (transport.Reply, error)) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", handler)

	var req T
	if err := c.Bind(&req); err != nil {
		l.Warn("bind_failed", "status", http.StatusUnprocessableEntity, "error", err)
		return bindFailed(c, err)
	}
	r, err := call(ctx, req)
	if errors.Is(err, service.ErrValidation) {
		l.Warn("validation_failed", "error", err)
		return render(c, transport.Failure(http.StatusUnprocessableEntity, nil, err.Error()))
	}
	if err != nil {
		l.Error(handler+"_failed", "error", err)
		return err
	}
	if r.Code != transport.KindSuccess {
		l.Info(handler+"_refused", "status", r.Status, "reason", transport.ReasonOf(r))
	}
	return render(c, r)
}

// CoreHTTP serves the endpoints both surfaces share.
type CoreHTTP struct {
	Svc     *service.Core
	Surface string
}

func (h *CoreHTTP) name(op string) string { return h.Surface + "_" + op }

func (h *CoreHTTP) Token(c echo.Context) error {
	return serve(c, h.name("token"), h.Svc.Token)
}

func (h *CoreHTTP) OpenIDLogin(c echo.Context) error {
	return serve(c, h.name("openid_login"), h.Svc.OpenIDLogin)
}

func (h *CoreHTTP) MailCode(c echo.Context) error {
	return serve(c, h.name("mail_code"), h.Svc.RequestMailCode)
}

func (h *CoreHTTP) PhoneCode(c echo.Context) error {
	return serve(c, h.name("phone_code"), h.Svc.RequestPhoneCode)
}

func (h *CoreHTTP) Clean(c echo.Context) error {
	id := c.Param("userId")
	return serve(c, h.name("clean"), func(ctx context.Context, _ struct{}) (transport.Reply, error) {
		return h.Svc.Clean(ctx, id)
	})
}

type AuthHTTP struct {
	CoreHTTP
	App *service.App
}

func NewAuthHTTP(app *service.App) *AuthHTTP {
	return &AuthHTTP{CoreHTTP: CoreHTTP{Svc: app.Core, Surface: "auth"}, App: app}
}

func (h *AuthHTTP) MailSignup(c echo.Context) error {
	return serve(c, "auth_mail_signup", h.App.MailSignup)
}

func (h *AuthHTTP) PhoneSignup(c echo.Context) error {
	return serve(c, "auth_phone_signup", h.App.PhoneSignup)
}

func (h *AuthHTTP) MiniSignup(c echo.Context) error {
	return serve(c, "auth_mini_signup", h.App.MiniSignup)
}

func (h *AuthHTTP) CodeLogin(c echo.Context) error {
	return serve(c, "auth_code_login", h.App.CodeLogin)
}

func (h *AuthHTTP) Clean(c echo.Context) error {
	p, id := principal(c), c.Param("userId")
	return serve(c, "auth_clean", func(ctx context.Context, _ struct{}) (transport.Reply, error) {
		return h.App.Clean(ctx, p, id)
	})
}

func (h *AuthHTTP) RebindPhone(c echo.Context) error {
	p := principal(c)
	return serve(c, "auth_rebind_phone", func(ctx context.Context, req transport.RebindRequest) (transport.Reply, error) {
		return h.App.RebindPhone(ctx, p, req)
	})
}

func (h *AuthHTTP) Authorize(c echo.Context) error {
	p := principal(c)
	return serve(c, "auth_authorize", func(ctx context.Context, req transport.AuthorizeRequest) (transport.Reply, error) {
		return h.App.Authorize(ctx, p, req)
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	p := principal(c)
	return serve(c, "auth_logout", func(ctx context.Context, _ struct{}) (transport.Reply, error) {
		return h.App.Logout(ctx, p)
	})
}
