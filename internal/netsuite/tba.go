package netsuite

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

// tbaRealm converts an account id such as "1234567-sb1" into the realm the
// ERP expects in the Authorization header ("1234567_SB1").
func tbaRealm(accountID string) string {
	return strings.ToUpper(strings.ReplaceAll(accountID, "-", "_"))
}

// newTBAClient returns an HTTP client that signs every request with token
// based authentication (OAuth 1.0a, HMAC-SHA256). base supplies the
// underlying transport when set.
func newTBAClient(cfg Config, base *http.Client, timeout time.Duration) *http.Client {
	oc := &oauth1.Config{
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		Realm:          tbaRealm(cfg.AccountID),
		Signer:         &oauth1.HMAC256Signer{ConsumerSecret: cfg.ConsumerSecret},
		Noncer:         oauth1.HexNoncer{},
	}
	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, base)
		if base.Timeout > 0 {
			timeout = base.Timeout
		}
	}
	client := oc.Client(ctx, oauth1.NewToken(cfg.TokenID, cfg.TokenSecret))
	client.Timeout = timeout
	return client
}
