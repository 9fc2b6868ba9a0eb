// Package fint is the HTTP client for the FINT source and archive APIs of one organisation.
package fint

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/archive"
	"github.com/iota-uz/personnel-sync/pkg/configuration"
)

const maxBodyBytes = 8 << 20

type Options struct {
	Timeout         time.Duration
	RequestIDHeader string
	// Base is the transport used for both token and API calls. Nil means http.DefaultClient.
	Base   *http.Client
	Logger *logrus.Entry
}

func (o *Options) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Base == nil {
		o.Base = http.DefaultClient
	}
	if o.Logger == nil {
		o.Logger = logrusNop()
	}
}

// Client talks to one organisation's FINT endpoints with a password-grant OAuth2 token.
type Client struct {
	org             configuration.Organisation
	httpClient      *http.Client
	requestIDHeader string
	query           string
	log             *logrus.Entry
}

func NewClient(org configuration.Organisation, opts Options) (*Client, error) {
	opts.setDefaults()

	query, err := validatedQuery()
	if err != nil {
		return nil, err
	}

	conf := &oauth2.Config{
		ClientID:     org.OAuth.ClientID,
		ClientSecret: org.OAuth.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: org.OAuth.TokenURL},
		Scopes:       strings.Fields(org.OAuth.Scope),
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, opts.Base)
	source := oauth2.ReuseTokenSource(nil, passwordSource{
		ctx:      tokenCtx,
		conf:     conf,
		username: org.OAuth.Username,
		password: org.OAuth.Password,
	})

	httpClient := oauth2.NewClient(tokenCtx, source)
	httpClient.Timeout = opts.Timeout
	// Status polling reads the redirect itself instead of following it.
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		org:             org,
		httpClient:      httpClient,
		requestIDHeader: opts.RequestIDHeader,
		query:           query,
		log:             opts.Logger.WithField("org_id", org.ID),
	}, nil
}

// passwordSource requests a fresh token with the resource owner password grant.
type passwordSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s passwordSource) Token() (*oauth2.Token, error) {
	tok, err := s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
	if err != nil {
		return nil, errors.Wrap(err, "password grant")
	}
	return tok, nil
}

type response struct {
	status   int
	location string
	body     []byte
}

func (c *Client) do(ctx context.Context, method, target string, reqBody any) (response, error) {
	var body io.Reader
	if reqBody != nil {
		var b []byte
		switch v := reqBody.(type) {
		case json.RawMessage:
			b = v
		case []byte:
			b = v
		default:
			var err error
			if b, err = json.Marshal(reqBody); err != nil {
				return response{}, errors.Wrap(err, "json marshal request")
			}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return response{}, errors.Wrap(err, "http request")
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.requestIDHeader != "" {
		req.Header.Set(c.requestIDHeader, uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, errors.Wrapf(err, "%s %s", method, target)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, errors.Wrap(err, "http read")
	}

	out := response{status: resp.StatusCode, body: respBody}
	if loc, err := resp.Location(); err == nil {
		out.location = loc.String()
	}

	c.log.WithFields(logrus.Fields{
		"method": method,
		"url":    target,
		"status": resp.StatusCode,
	}).Trace("fint response")

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return out, &archive.StatusError{Status: resp.StatusCode, Body: respBody}
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return errors.Wrapf(err, "decode %s", target)
	}
	return nil
}

func (c *Client) write(ctx context.Context, method, target string, payload any) (archive.Response, error) {
	resp, err := c.do(ctx, method, target, payload)
	if err != nil {
		return archive.Response{}, err
	}
	return archive.Response{Status: resp.status, Location: resp.location, Body: resp.body}, nil
}

func (c *Client) endpoint(path string) string {
	return c.org.Endpoints.Resolve(path)
}

func logrusNop() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}
