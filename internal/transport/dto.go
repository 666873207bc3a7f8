package transport

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Phone accepts both a JSON string and a JSON number.
type Phone string

func (p *Phone) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Phone(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = Phone(n.String())
	return nil
}

func (p *Phone) UnmarshalParam(s string) error {
	*p = Phone(strings.TrimSpace(s))
	return nil
}

func (p Phone) String() string { return string(p) }

type ClientCredentials struct {
	ClientID     string `json:"client_id"     form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
}

func (c ClientCredentials) Missing() bool {
	return c.ClientID == "" || c.ClientSecret == ""
}

type TokenRequest struct {
	ClientCredentials
	GrantType    string `json:"grant_type"    form:"grant_type"`
	Username     string `json:"username"      form:"username"`
	Password     string `json:"password"      form:"password"`
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
	Code         string `json:"code"          form:"code"`
	RedirectURI  string `json:"redirect_uri"  form:"redirect_uri"`
	Scope        string `json:"scope"         form:"scope"`
}

type MailCodeRequest struct {
	Email string `json:"email" form:"email"`
}

type PhoneCodeRequest struct {
	Phone Phone `json:"phone" form:"phone"`
}

type MailSignupRequest struct {
	ClientCredentials
	Email           string `json:"email"           form:"email"`
	Password        string `json:"password"        form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
	Code            string `json:"code"            form:"code"`
}

type PhoneSignupRequest struct {
	ClientCredentials
	Phone           Phone  `json:"phone"           form:"phone"`
	Password        string `json:"password"        form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
	Code            string `json:"code"            form:"code"`
}

type MiniSignupRequest struct {
	ClientCredentials
	OpenID string `json:"openid" form:"openid"`
	Phone  Phone  `json:"phone"  form:"phone"`
	Code   string `json:"code"   form:"code"`
}

type RebindRequest struct {
	OpenID string `json:"openid" form:"openid"`
	Phone  Phone  `json:"phone"  form:"phone"`
	Code   string `json:"code"   form:"code"`
}

type CodeLoginRequest struct {
	ClientCredentials
	Username Phone  `json:"username" form:"username"`
	Code     string `json:"code"     form:"code"`
	Scope    string `json:"scope"    form:"scope"`
}

type AuthorizeRequest struct {
	ClientID    string `json:"client_id"    form:"client_id"`
	RedirectURI string `json:"redirect_uri" form:"redirect_uri"`
	Scope       string `json:"scope"        form:"scope"`
}

type PageQuery struct {
	Page     string `query:"page"`
	PageSize string `query:"pageSize"`
}

type CreateClientRequest struct {
	ClientID     string   `json:"clientId"`
	ClientName   string   `json:"clientName"`
	ClientSecret string   `json:"clientSecret"`
	Grants       []string `json:"grants"`
	ClientType   *int     `json:"clientType"`
}

// PatchClientRequest lists every field a client patch may touch. Nil means
// unchanged.
type PatchClientRequest struct {
	ClientName *string   `json:"clientName"`
	Grants     *[]string `json:"grants"`
	ClientType *int      `json:"clientType"`
	Status     *int      `json:"status"`
}

type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}
