// Package httpserver exposes the app and admin surfaces over echo.
package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Pinger func(ctx context.Context) error

type Deps struct {
	Auth      *AuthHTTP
	Admin     *AdminHTTP
	Clients   *ClientsHTTP
	AppGuard  *Guard
	AdmGuard  *Guard
	Ready     Pinger
	TestClean bool
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/token", d.Auth.Token)
	auth.POST("/token/code", d.Auth.CodeLogin)
	auth.POST("/token/openid", d.Auth.OpenIDLogin)
	auth.POST("/code/mail", d.Auth.MailCode)
	auth.POST("/code/phone", d.Auth.PhoneCode)
	auth.POST("/signup/mail", d.Auth.MailSignup)
	auth.POST("/signup/phone", d.Auth.PhoneSignup)
	auth.POST("/signup/openid", d.Auth.MiniSignup)
	auth.POST("/rebind/phone", d.Auth.RebindPhone, d.AppGuard.RequireAuth)
	auth.POST("/authorize", d.Auth.Authorize, d.AppGuard.RequireAuth)
	auth.POST("/logout", d.Auth.Logout, d.AppGuard.RequireAuth)

	admin := v1.Group("/admin/auth")
	admin.POST("/token", d.Admin.Token)
	admin.POST("/code/mail", d.Admin.MailCode)
	admin.POST("/code/phone", d.Admin.PhoneCode)
	admin.GET("/users", d.Admin.ListUsers, d.AdmGuard.AdminOnly)
	admin.DELETE("/users/:userId", d.Admin.DeleteUser, d.AdmGuard.AdminOnly)

	clients := v1.Group("/admin/clients", d.AdmGuard.AdminOnly)
	clients.GET("", d.Clients.List)
	clients.POST("", d.Clients.Create)
	clients.PATCH("/:id", d.Clients.Patch)
	clients.DELETE("/:id", d.Clients.Delete)

	if d.TestClean {
		auth.DELETE("/test/clean/:userId", d.Auth.Clean, d.AppGuard.RequireAuth)
		admin.DELETE("/test/clean/:userId", d.Admin.Clean, d.AdmGuard.AdminOnly)
		clients.DELETE("/test/clean/:id", d.Clients.Clean)
	}
}
