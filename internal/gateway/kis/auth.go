package kis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"poa/internal/errs"
	"poa/internal/gateway/rest"
	"poa/internal/session"
)

const expiryLayout = "2006-01-02 15:04:05"

// kst is the zone KIS reports token expiry in.
var kst = time.FixedZone("KST", 9*60*60)

// authenticator implements session.Authenticator against the KIS OAuth endpoints.
type authenticator struct {
	cfg    Config
	client *rest.Client
}

var _ session.Authenticator = (*authenticator)(nil)

// Probe queries a fixed quote with the token. Only EGW00123 counts as stale.
func (a *authenticator) Probe(ctx context.Context, token string) error {
	_, err := send(ctx, a.client, a.cfg, token, call{
		op:     "probe",
		method: http.MethodGet,
		path:   pathInquireCcnl,
		trID:   trProbe,
		query: url.Values{
			"FID_COND_MRKT_DIV_CODE": {"J"},
			"FID_INPUT_ISCD":         {"005930"},
		},
	})
	return err
}

func (a *authenticator) Issue(ctx context.Context) (session.AuthToken, error) {
	id := a.cfg.ID()
	resp, err := a.client.Do(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   pathTokenP,
		Body: map[string]string{
			"grant_type": "client_credentials",
			"appkey":     a.cfg.AppKey,
			"appsecret":  a.cfg.AppSecret,
		},
	})
	if err != nil {
		return session.AuthToken{}, errs.Remote(id, "token", err)
	}
	res := resp.JSON()
	value := strings.TrimSpace(res.Get("access_token").String())
	if value == "" {
		reason := res.Get("error_description").String()
		if reason == "" {
			reason = res.Get("msg1").String()
		}
		if reason == "" {
			reason = fmt.Sprintf("no access_token in response (http %d)", resp.Status)
		}
		return session.AuthToken{}, errs.Authentication(id, reason, nil)
	}
	tok := session.AuthToken{Value: value, Raw: resp.Body}
	if raw := res.Get("access_token_token_expired").String(); raw != "" {
		exp, err := time.ParseInLocation(expiryLayout, raw, kst)
		if err != nil {
			return session.AuthToken{}, errs.Authentication(id, "unparseable token expiry", err)
		}
		tok.ExpiresAt = exp
	} else if secs := res.Get("expires_in").Int(); secs > 0 {
		tok.ExpiresAt = time.Now().Add(time.Duration(secs) * time.Second)
	}
	return tok, nil
}
