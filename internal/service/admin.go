package service

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/auth_center/internal/events"
	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/models"
	"github.com/Skotchmaster/auth_center/internal/transport"
	"github.com/Skotchmaster/auth_center/internal/util"
)

// Admin adds user management for the admin console.
type Admin struct {
	*Core
}

func NewAdmin(core *Core) *Admin {
	return &Admin{Core: core}
}

func (a *Admin) ListUsers(ctx context.Context, q transport.PageQuery) (transport.Reply, error) {
	page, size := util.ParsePage(q.Page, q.PageSize)
	from, limit := util.Calculate(page, size)

	users, total, err := a.Store.ListUsers(ctx, from, limit)
	if err != nil {
		return transport.Reply{}, fmt.Errorf("list users: %w", err)
	}
	return transport.OK(transport.Page[models.User]{
		Items:    users,
		Total:    total,
		Page:     page,
		PageSize: limit,
	}), nil
}

// DeleteUser blocks the user. Use Clean for a physical delete.
func (a *Admin) DeleteUser(ctx context.Context, userID string) (transport.Reply, error) {
	ok, err := a.Linker.DeleteUser(ctx, userID)
	if err != nil {
		return transport.Reply{}, err
	}
	if !ok {
		return transport.Warning(transport.Reason(transport.InvalidUser), "The user is notfound."), nil
	}
	logging.FromContext(ctx).Info("user_blocked", "svc", "admin.delete_user", "user_id", userID)
	a.publish(ctx, events.UserDeleted, &models.User{ID: userID}, nil)
	return transport.OK(nil), nil
}
