package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Skotchmaster/auth_center/internal/events"
	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/models"
	"github.com/Skotchmaster/auth_center/internal/randcode"
	"github.com/Skotchmaster/auth_center/internal/transport"
	"github.com/Skotchmaster/auth_center/internal/util"
	"golang.org/x/text/cases"
)

const DefaultSecretLength = 20

// ErrValidation marks malformed client input.
var ErrValidation = errors.New("validation failed")

type ClientStore interface {
	FindClient(ctx context.Context, id string) (*models.Client, error)
	ClientTaken(ctx context.Context, clientID, displayName, exceptID string) (bool, error)
	CreateClient(ctx context.Context, c *models.Client) error
	ListClients(ctx context.Context, offset, limit int) ([]models.Client, int64, error)
	UpdateClient(ctx context.Context, id string, updates map[string]any) (*models.Client, error)
	DeleteClient(ctx context.Context, id string) (bool, error)
}

type ClientRegistry struct {
	Store        ClientStore
	Events       events.Publisher
	Topic        string
	SecretLength int
}

// FoldName is the form display names are stored and compared in.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func parseGrants(raw []string) (models.GrantSet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: grants must not be empty", ErrValidation)
	}
	out := make(models.GrantSet, 0, len(raw))
	for _, g := range raw {
		kind, ok := models.ParseGrantKind(strings.TrimSpace(g))
		if !ok {
			return nil, fmt.Errorf("%w: grant %q is not valid", ErrValidation, g)
		}
		if !out.Has(kind) {
			out = append(out, kind)
		}
	}
	return out, nil
}

func parseClientType(v int) (models.ClientType, bool) {
	t := models.ClientType(v)
	return t, t == models.ClientTypeAdmin || t == models.ClientTypeApp
}

func parseClientStatus(v int) (models.ClientStatus, bool) {
	s := models.ClientStatus(v)
	return s, s == models.ClientActive || s == models.ClientBlocked
}

// Create registers a client. A taken id or name yields nil.
func (r *ClientRegistry) Create(ctx context.Context, req transport.CreateClientRequest) (*models.Client, error) {
	name := FoldName(req.ClientName)
	if name == "" || strings.TrimSpace(req.ClientID) == "" {
		return nil, fmt.Errorf("%w: clientId and clientName are required", ErrValidation)
	}
	grants, err := parseGrants(req.Grants)
	if err != nil {
		return nil, err
	}
	ctype := models.ClientTypeApp
	if req.ClientType != nil {
		t, ok := parseClientType(*req.ClientType)
		if !ok {
			return nil, fmt.Errorf("%w: clientType %d is not valid", ErrValidation, *req.ClientType)
		}
		ctype = t
	}

	taken, err := r.Store.ClientTaken(ctx, req.ClientID, name, "")
	if err != nil {
		return nil, fmt.Errorf("check client: %w", err)
	}
	if taken {
		return nil, nil
	}

	secret := req.ClientSecret
	if secret == "" {
		n := r.SecretLength
		if n <= 0 {
			n = DefaultSecretLength
		}
		if secret, err = randcode.Generate(n); err != nil {
			return nil, err
		}
	}
	c := &models.Client{
		ClientID:    req.ClientID,
		Secret:      secret,
		DisplayName: name,
		Grants:      grants,
		Type:        ctype,
		Status:      models.ClientActive,
	}
	if err := r.Store.CreateClient(ctx, c); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	r.publish(ctx, events.ClientCreated, c)
	return c, nil
}

func (r *ClientRegistry) List(ctx context.Context, q transport.PageQuery) (transport.Page[models.Client], error) {
	page, size := util.ParsePage(q.Page, q.PageSize)
	from, limit := util.Calculate(page, size)
	clients, total, err := r.Store.ListClients(ctx, from, limit)
	if err != nil {
		return transport.Page[models.Client]{}, fmt.Errorf("list clients: %w", err)
	}
	return transport.Page[models.Client]{Items: clients, Total: total, Page: page, PageSize: limit}, nil
}

// Patch applies the whitelisted fields of req. found is false for an
// unknown id; a nil client with found set means the name is taken.
func (r *ClientRegistry) Patch(ctx context.Context, id string, req transport.PatchClientRequest) (client *models.Client, found bool, err error) {
	current, err := r.Store.FindClient(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("find client: %w", err)
	}
	if current == nil {
		return nil, false, nil
	}

	updates := map[string]any{}
	if req.ClientName != nil {
		name := FoldName(*req.ClientName)
		if name == "" {
			return nil, true, fmt.Errorf("%w: clientName must not be empty", ErrValidation)
		}
		taken, err := r.Store.ClientTaken(ctx, "", name, id)
		if err != nil {
			return nil, true, fmt.Errorf("check client: %w", err)
		}
		if taken {
			return nil, true, nil
		}
		updates["display_name"] = name
	}
	if req.Grants != nil {
		grants, err := parseGrants(*req.Grants)
		if err != nil {
			return nil, true, err
		}
		updates["grants"] = grants
	}
	if req.ClientType != nil {
		t, ok := parseClientType(*req.ClientType)
		if !ok {
			return nil, true, fmt.Errorf("%w: clientType %d is not valid", ErrValidation, *req.ClientType)
		}
		updates["type"] = t
	}
	if req.Status != nil {
		s, ok := parseClientStatus(*req.Status)
		if !ok {
			return nil, true, fmt.Errorf("%w: status %d is not valid", ErrValidation, *req.Status)
		}
		updates["status"] = s
	}

	updated, err := r.Store.UpdateClient(ctx, id, updates)
	if err != nil {
		return nil, true, fmt.Errorf("update client: %w", err)
	}
	if updated != nil {
		r.publish(ctx, events.ClientUpdated, updated)
	}
	return updated, updated != nil, nil
}

// Delete blocks the client. It reports false for an unknown id.
func (r *ClientRegistry) Delete(ctx context.Context, id string) (bool, error) {
	current, err := r.Store.FindClient(ctx, id)
	if err != nil {
		return false, fmt.Errorf("find client: %w", err)
	}
	if current == nil {
		return false, nil
	}
	updated, err := r.Store.UpdateClient(ctx, id, map[string]any{"status": models.ClientBlocked})
	if err != nil {
		return false, fmt.Errorf("block client: %w", err)
	}
	r.publish(ctx, events.ClientBlocked, updated)
	return updated != nil, nil
}

// Clean removes the client and everything issued through it.
func (r *ClientRegistry) Clean(ctx context.Context, id string) (bool, error) {
	ok, err := r.Store.DeleteClient(ctx, id)
	if err != nil {
		return false, fmt.Errorf("clean client: %w", err)
	}
	return ok, nil
}

func (r *ClientRegistry) publish(ctx context.Context, typ string, c *models.Client) {
	if r.Events == nil || c == nil {
		return
	}
	ev := events.New(typ, c.ID, map[string]any{"clientId": c.ClientID, "clientName": c.DisplayName, "status": c.Status})
	if err := r.Events.PublishEvent(ctx, r.Topic, c.ID, ev); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "svc", "clients.publish", "type", typ, "error", err)
	}
}

// The reply helpers below map registry results onto the envelope.

func ClientCreated(c *models.Client) transport.Reply {
	if c == nil {
		return transport.Warning(transport.Reason(transport.ClientIDOrClientNameExists), "ClientName or clientId field is already exists.")
	}
	return transport.Success(http.StatusCreated, c, "Created.")
}

func ClientPatched(c *models.Client, found bool) transport.Reply {
	switch {
	case !found:
		return transport.Warning(transport.Reason(transport.ClientNotFound), "The client is notfound.")
	case c == nil:
		return transport.Warning(transport.Reason(transport.InvalidClient), "The clientName field is already exists.")
	}
	return transport.Success(http.StatusOK, c, fmt.Sprintf("%s has been updated.", c.DisplayName))
}

func ClientRemoved(ok bool, msg string) transport.Reply {
	if !ok {
		return transport.Warning(transport.Reason(transport.ClientNotFound), "The client is notfound.")
	}
	return transport.Success(http.StatusOK, nil, msg)
}
