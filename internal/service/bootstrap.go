package service

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/auth_center/internal/identity"
	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/models"
	"github.com/Skotchmaster/auth_center/internal/randcode"
)

type BootstrapConfig struct {
	ClientID     string
	ClientSecret string
	Email        string
	Password     string
}

type BootstrapStore interface {
	GetClient(ctx context.Context, clientID, secret string) (*models.Client, error)
	CreateClient(ctx context.Context, c *models.Client) error
	GetUser(ctx context.Context, filter models.UserFilter) (*models.User, error)
}

// Bootstrap makes sure the admin console has a client to log in through and
// a super user to log in as. Existing records are left untouched.
func Bootstrap(ctx context.Context, store BootstrapStore, linker *identity.Linker, cfg BootstrapConfig) error {
	l := logging.FromContext(ctx).With("svc", "bootstrap")

	if cfg.ClientID != "" {
		c, err := store.GetClient(ctx, cfg.ClientID, "")
		if err != nil {
			return fmt.Errorf("lookup admin client: %w", err)
		}
		if c == nil {
			secret := cfg.ClientSecret
			if secret == "" {
				if secret, err = randcode.Generate(DefaultSecretLength); err != nil {
					return err
				}
			}
			c = &models.Client{
				ClientID:    cfg.ClientID,
				Secret:      secret,
				DisplayName: FoldName(cfg.ClientID),
				Grants:      models.GrantSet{models.GrantPassword, models.GrantRefreshToken},
				Type:        models.ClientTypeAdmin,
				Status:      models.ClientActive,
			}
			if err := store.CreateClient(ctx, c); err != nil {
				return fmt.Errorf("create admin client: %w", err)
			}
			l.Info("admin_client_created", "client_id", c.ClientID)
		}
	}

	if cfg.Email != "" && cfg.Password != "" {
		u, err := store.GetUser(ctx, models.UserFilter{Email: cfg.Email})
		if err != nil {
			return fmt.Errorf("lookup admin user: %w", err)
		}
		if u == nil {
			u, err = linker.CreateMailUser(ctx, cfg.Email, cfg.Password, models.RoleSuper, models.ScopeRead+" "+models.ScopeWrite)
			if err != nil {
				return err
			}
			if u != nil {
				l.Info("admin_user_created", "user_id", u.ID)
			}
		}
	}
	return nil
}
