package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GrantKind string

const (
	GrantPassword          GrantKind = "password"
	GrantRefreshToken      GrantKind = "refresh_token"
	GrantAuthorizationCode GrantKind = "authorization_code"
	GrantClientCredentials GrantKind = "client_credentials"
)

var ValidGrants = []GrantKind{GrantPassword, GrantRefreshToken, GrantAuthorizationCode, GrantClientCredentials}

func ParseGrantKind(s string) (GrantKind, bool) {
	for _, g := range ValidGrants {
		if string(g) == s {
			return g, true
		}
	}
	return "", false
}

// GrantSet is persisted as a space separated column.
type GrantSet []GrantKind

func (g GrantSet) Has(kind GrantKind) bool {
	for _, k := range g {
		if k == kind {
			return true
		}
	}
	return false
}

func (g GrantSet) Value() (driver.Value, error) {
	parts := make([]string, len(g))
	for i, k := range g {
		parts[i] = string(k)
	}
	return strings.Join(parts, " "), nil
}

func (g *GrantSet) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*g = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("grant set: unsupported type %T", src)
	}
	fields := strings.Fields(raw)
	out := make(GrantSet, 0, len(fields))
	for _, f := range fields {
		out = append(out, GrantKind(f))
	}
	*g = out
	return nil
}

type ClientType int

const (
	ClientTypeAdmin ClientType = 0
	ClientTypeApp   ClientType = 1
)

type ClientStatus int

const (
	ClientBlocked ClientStatus = -1
	ClientActive  ClientStatus = 1
)

type Client struct {
	ID          string       `gorm:"primaryKey;size:36"                 json:"id"`
	ClientID    string       `gorm:"uniqueIndex;not null"               json:"clientId"`
	Secret      string       `gorm:"not null"                           json:"clientSecret"`
	DisplayName string       `gorm:"uniqueIndex;not null"               json:"clientName"`
	Grants      GrantSet     `gorm:"type:text;not null"                 json:"grants"`
	Type        ClientType   `gorm:"not null"                           json:"clientType"`
	Status      ClientStatus `gorm:"not null"                           json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (c *Client) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Client) Active() bool { return c.Status == ClientActive }

type Role string

const (
	RoleUser  Role = "User"
	RoleStaff Role = "Staff"
	RoleSuper Role = "Super"
)

type UserStatus int

const (
	UserBlocked      UserStatus = -1
	UserNew          UserStatus = 0
	UserActive       UserStatus = 1
	UserNeedsConfirm UserStatus = 2
)

// OpenIDPassword marks accounts created from a third-party identity. It is
// not a bcrypt hash, so password login can never succeed against it.
const OpenIDPassword = "0"

type User struct {
	ID           string     `gorm:"primaryKey;size:36"   json:"id"`
	Email        string     `gorm:"index"                json:"email"`
	Phone        string     `gorm:"index"                json:"phone"`
	OpenID       string     `gorm:"column:openid;index"  json:"openid"`
	PasswordHash string     `gorm:"not null"             json:"-"`
	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	Scope        string     `gorm:"not null"             json:"scope"`
	Role         Role       `gorm:"not null"             json:"roles"`
	Status       UserStatus `gorm:"not null"             json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserFilter selects a user by one or more identities. Empty fields are
// ignored; a filter with no fields matches nothing.
type UserFilter struct {
	ID       string
	Username string
	Email    string
	Phone    string
	OpenID   string
}

func (f UserFilter) Empty() bool {
	return f.ID == "" && f.Username == "" && f.Email == "" && f.Phone == "" && f.OpenID == ""
}

type Token struct {
	ID                    string    `gorm:"primaryKey;size:36"    json:"-"`
	AccessToken           string    `gorm:"uniqueIndex;not null"  json:"accessToken"`
	AccessTokenExpiresAt  time.Time `gorm:"not null"              json:"accessTokenExpiresAt"`
	RefreshToken          string    `gorm:"index"                 json:"refreshToken,omitempty"`
	RefreshTokenExpiresAt time.Time `gorm:"column:refresh_token_expires_at" json:"refreshTokenExpiresAt,omitempty"`
	Scope                 string    `json:"scope"`
	ClientID              string    `gorm:"index;size:36;not null" json:"-"`
	UserID                string    `gorm:"index;size:36;not null" json:"-"`
	Client                *Client   `gorm:"foreignKey:ClientID"   json:"-"`
	User                  *User     `gorm:"foreignKey:UserID"     json:"-"`
	CreatedAt             time.Time `json:"-"`
}

func (Token) TableName() string { return "tokens" }

func (t *Token) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type AuthorizationCode struct {
	Code        string    `gorm:"primaryKey;size:64"      json:"code"`
	ExpiresAt   time.Time `gorm:"not null"                json:"expiresAt"`
	RedirectURI string    `json:"redirectUri"`
	Scope       string    `json:"scope"`
	ClientID    string    `gorm:"index;size:36;not null"  json:"-"`
	UserID      string    `gorm:"index;size:36;not null"  json:"-"`
	Client      *Client   `gorm:"foreignKey:ClientID"     json:"-"`
	User        *User     `gorm:"foreignKey:UserID"       json:"-"`
	CreatedAt   time.Time `json:"-"`
}

func (AuthorizationCode) TableName() string { return "authorization_codes" }

// All lists the models for auto-migration.
func All() []any {
	return []any{&Client{}, &User{}, &Token{}, &AuthorizationCode{}}
}
