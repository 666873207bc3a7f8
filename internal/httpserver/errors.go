package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/transport"
	"github.com/labstack/echo/v4"
)

// ErrorHandler renders every unhandled error as a failure envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := http.StatusText(status)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if status == http.StatusNotFound {
		msg = "Notfound"
	}
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("unhandled_error", "status", status, "error", err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, transport.Failure(status, nil, msg).Envelope)
	}
	if werr != nil {
		logging.FromContext(c.Request().Context()).Error("error_response_failed", "error", werr)
	}
}

func render(c echo.Context, r transport.Reply) error {
	return c.JSON(r.Status, r.Envelope)
}

// bindFailed answers a request body or query that could not be decoded.
func bindFailed(c echo.Context, err error) error {
	msg := "invalid request"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return render(c, transport.Failure(http.StatusUnprocessableEntity, nil, msg))
}
