package httpserver

import (
	"context"

	"github.com/Skotchmaster/auth_center/internal/service"
	"github.com/Skotchmaster/auth_center/internal/transport"
	"github.com/labstack/echo/v4"
)

type AdminHTTP struct {
	CoreHTTP
	Admin *service.Admin
}

func NewAdminHTTP(admin *service.Admin) *AdminHTTP {
	return &AdminHTTP{CoreHTTP: CoreHTTP{Svc: admin.Core, Surface: "admin"}, Admin: admin}
}

func (h *AdminHTTP) ListUsers(c echo.Context) error {
	return serve(c, "admin_list_users", h.Admin.ListUsers)
}

func (h *AdminHTTP) DeleteUser(c echo.Context) error {
	id := c.Param("userId")
	return serve(c, "admin_delete_user", func(ctx context.Context, _ struct{}) (transport.Reply, error) {
		return h.Admin.DeleteUser(ctx, id)
	})
}

type ClientsHTTP struct {
	Registry *service.ClientRegistry
}

func (h *ClientsHTTP) List(c echo.Context) error {
	return serve(c, "clients_list", func(ctx context.Context, q transport.PageQuery) (transport.Reply, error) {
		page, err := h.Registry.List(ctx, q)
		if err != nil {
			return transport.Reply{}, err
		}
		return transport.OK(page), nil
	})
}

func (h *ClientsHTTP) Create(c echo.Context) error {
	return serve(c, "clients_create", func(ctx context.Context, req transport.CreateClientRequest) (transport.Reply, error) {
		client, err := h.Registry.Create(ctx, req)
		if err != nil {
			return transport.Reply{}, err
		}
		return service.ClientCreated(client), nil
	})
}

func (h *ClientsHTTP) Patch(c echo.Context) error {
	id := c.Param("id")
	return serve(c, "clients_patch", func(ctx context.Context, req transport.PatchClientRequest) (transport.Reply, error) {
		client, found, err := h.Registry.Patch(ctx, id, req)
		if err != nil {
			return transport.Reply{}, err
		}
		return service.ClientPatched(client, found), nil
	})
}

func (h *ClientsHTTP) Delete(c echo.Context) error {
	id := c.Param("id")
	return serve(c, "clients_delete", func(ctx context.Context, _ struct{}) (transport.Reply, error) {
		ok, err := h.Registry.Delete(ctx, id)
		if err != nil {
			return transport.Reply{}, err
		}
		return service.ClientRemoved(ok, "The client has been blocked."), nil
	})
}

func (h *ClientsHTTP) Clean(c echo.Context) error {
	id := c.Param("id")
	return serve(c, "clients_clean", func(ctx context.Context, _ struct{}) (transport.Reply, error) {
		ok, err := h.Registry.Clean(ctx, id)
		if err != nil {
			return transport.Reply{}, err
		}
		return service.ClientRemoved(ok, "The client has been removed."), nil
	})
}
