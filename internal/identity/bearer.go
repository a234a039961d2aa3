package identity

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/terraconstructs/estate/internal/auth"
)

// ExtractBearer returns the token from an "Authorization: Bearer <token>"
// header value.
func ExtractBearer(header string) (string, error) {
	headers := http.Header{}
	headers.Set("Authorization", header)

	token, err := oidctoken.GetTokenString(headers.Get, [][]options.TokenStringOption{{}})
	if err != nil {
		return "", fmt.Errorf("%w: %v", auth.ErrNoToken, err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", auth.ErrNoToken
	}
	return token, nil
}
