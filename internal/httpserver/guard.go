package httpserver

import (
	"context"

	"github.com/Skotchmaster/auth_center/internal/grant"
	"github.com/Skotchmaster/auth_center/internal/transport"
	"github.com/labstack/echo/v4"
)

const principalKey = "principal"

type Authenticator interface {
	Authenticate(ctx context.Context, header, query string) (*grant.Principal, transport.Reply, error)
	Admit(p *grant.Principal) (transport.Reply, bool)
}

// Guard resolves the bearer of a request before the handler runs.
type Guard struct {
	Auth Authenticator
}

func NewGuard(auth Authenticator) *Guard {
	return &Guard{Auth: auth}
}

func (g *Guard) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, r, err := g.Auth.Authenticate(c.Request().Context(),
			c.Request().Header.Get(echo.HeaderAuthorization), c.QueryParam("access_token"))
		if err != nil {
			return err
		}
		if p == nil {
			return render(c, r)
		}
		c.Set(principalKey, p)
		return next(c)
	}
}

// AdminOnly is RequireAuth plus the admin client and staff role checks.
func (g *Guard) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return g.RequireAuth(func(c echo.Context) error {
		if r, ok := g.Auth.Admit(principal(c)); !ok {
			return render(c, r)
		}
		return next(c)
	})
}

func principal(c echo.Context) *grant.Principal {
	p, _ := c.Get(principalKey).(*grant.Principal)
	return p
}
