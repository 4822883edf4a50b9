package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/chatrelay/internal/platform/correlation"
	apperrors "github.com/pscheid92/chatrelay/internal/platform/errors"
)

const (
	contextKeyPrincipal = "principal"
	maxPrincipalLength  = 128
)

var errMissingPrincipal = errors.New("missing principal")

// Authenticator resolves the principal behind a control request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts a principal id set by an upstream proxy in
// Header.
type HeaderAuthenticator struct {
	Header string
}

func (a HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	principal := strings.TrimSpace(r.Header.Get(a.Header))
	if principal == "" || len(principal) > maxPrincipalLength {
		return "", errMissingPrincipal
	}
	return principal, nil
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, err := s.auth.Authenticate(c.Request())
		if err != nil {
			return apperrors.UnauthorizedError("authentication required")
		}

		c.Set(contextKeyPrincipal, principal)
		ctx := correlation.WithPrincipal(c.Request().Context(), principal)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func principalFrom(c echo.Context) (string, bool) {
	principal, ok := c.Get(contextKeyPrincipal).(string)
	return principal, ok && principal != ""
}
