package transport

import "net/http"

type Kind int

const (
	KindFailure Kind = -1
	KindSuccess Kind = 0
	KindWarning Kind = 1
)

// Reason tags carried in warning and failure data.
const (
	PhoneExists                = "PHONE_EXISTS"
	EmailExists                = "EMAIL_EXISTS"
	InvalidCode                = "INVALID_CODE"
	InvalidInfo                = "INVALID_INFO"
	InvalidUser                = "INVALID_USER"
	InvalidClient              = "INVALID_CLIENT"
	InvalidAuthorize           = "INVALID_AUTHORIZE"
	ClientIDOrClientNameExists = "CLIENTID_OR_CLIENTNAME_EXISTS"
	ClientNotFound             = "CLIENT_NOTFOUND"
)

type Envelope struct {
	Code Kind   `json:"code"`
	Data any    `json:"data"`
	Msg  string `json:"msg"`
}

// Reply is a finished response: envelope plus HTTP status.
type Reply struct {
	Status int
	Envelope
}

func Success(status int, data any, msg string) Reply {
	return Reply{Status: status, Envelope: Envelope{Code: KindSuccess, Data: data, Msg: msg}}
}

func OK(data any) Reply { return Success(http.StatusOK, data, "Success.") }

// Warning is an expected business rejection; always HTTP 200.
func Warning(data any, msg string) Reply {
	return Reply{Status: http.StatusOK, Envelope: Envelope{Code: KindWarning, Data: data, Msg: msg}}
}

func Failure(status int, data any, msg string) Reply {
	return Reply{Status: status, Envelope: Envelope{Code: KindFailure, Data: data, Msg: msg}}
}

func Reason(tag string) map[string]string {
	return map[string]string{"code": tag}
}

// ReasonOf returns the reason tag in r's data, if any.
func ReasonOf(r Reply) string {
	if m, ok := r.Data.(map[string]string); ok {
		return m["code"]
	}
	return ""
}
