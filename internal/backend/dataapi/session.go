package dataapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	gojson "github.com/goccy/go-json"

	"github.com/roach88/restgate/internal/backend"
	"github.com/roach88/restgate/internal/metrics"
)

// session returns the bearer token, logging in on first use.
func (c *Connector) session(ctx context.Context) (string, error) {
	if c.token != "" {
		return c.token, nil
	}
	if c.closed {
		return "", backend.NewFailure(0, "connector is closed", nil)
	}

	var b backoff.BackOff
	if c.opts.RetryInterval > 0 {
		b = backoff.NewConstantBackOff(c.opts.RetryInterval)
	} else {
		b = backoff.NewExponentialBackOff()
	}
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.LoginRetries)), ctx)

	token, err := backoff.RetryWithData(func() (string, error) {
		token, err := c.login(ctx)
		if err != nil && !retryable(err) {
			return "", backoff.Permanent(err)
		}
		return token, err
	}, b)
	if err != nil {
		return "", err
	}
	c.token = token
	c.ownsSession = true
	c.log.Debugw("data api session opened", "db", c.database)
	return token, nil
}

// retryable reports whether a login failure may succeed on a second try.
func retryable(err error) bool {
	be := backend.AsError(err)
	return be.Category == backend.CategoryFailure && (be.Code == 0 || be.Code >= 500)
}

func (c *Connector) login(ctx context.Context) (string, error) {
	defer metrics.StartTimer(backend.KindDataAPI, "login").Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.databaseURL("sessions"), bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", backend.NewFailure(0, "build login request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.creds.Username, c.creds.Password)

	var sr sessionResponse
	if err := c.send(req, "login", &sr); err != nil {
		return "", err
	}
	if sr.Token == "" {
		return "", backend.NewFailure(0, "login returned no token", nil)
	}
	return sr.Token, nil
}

// Close implements backend.Connector. A session the connector opened is
// logged out; a token supplied by the caller is left alone.
func (c *Connector) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if !c.ownsSession || c.token == "" {
		return nil
	}
	token := c.token
	c.token = ""

	defer metrics.StartTimer(backend.KindDataAPI, "logout").Stop()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.databaseURL("sessions", token), nil)
	if err != nil {
		return backend.NewFailure(0, "build logout request", err)
	}
	if err := c.send(req, "logout", nil); err != nil {
		c.log.Warnw("data api logout failed", "db", c.database, "error", err)
		return err
	}
	c.log.Debugw("data api session closed", "db", c.database)
	return nil
}

// databaseURL joins path segments under /fmi/data/{version}/databases/{db}.
func (c *Connector) databaseURL(segments ...string) string {
	parts := append([]string{"fmi", "data", c.opts.Version, "databases", c.database}, segments...)
	return c.base.JoinPath(parts...).String()
}

// call sends an authenticated request. body, when not nil, is JSON encoded.
func (c *Connector) call(ctx context.Context, action, method, target string, query url.Values, body, out any) error {
	defer metrics.StartTimer(backend.KindDataAPI, action).Stop()

	token, err := c.session(ctx)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := gojson.Marshal(body)
		if err != nil {
			return backend.NewFailure(0, "encode request", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return backend.NewFailure(0, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.send(req, action, out)
}

// send executes req and decodes the envelope's response into out.
func (c *Connector) send(req *http.Request, action string, out any) error {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return backend.NewFailure(0, fmt.Sprintf("%s: request failed", action), err)
	}
	defer resp.Body.Close()
	c.log.Debugw("data api call", "action", action, "status", resp.StatusCode, "elapsed", time.Since(start))

	var env envelope
	if err := gojson.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode == http.StatusUnauthorized {
			return backend.NewUnauthorized(resp.StatusCode, "data api rejected the credentials")
		}
		if resp.StatusCode >= 300 {
			return backend.NewFailure(resp.StatusCode, fmt.Sprintf("%s: http status %d", action, resp.StatusCode), nil)
		}
		return backend.NewFailure(0, fmt.Sprintf("%s: decode response", action), err)
	}
	if code, msg := env.code(); code != codeOK {
		return remapCode(code, msg, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return backend.NewFailure(resp.StatusCode, fmt.Sprintf("%s: http status %d", action, resp.StatusCode), nil)
	}
	if out == nil || len(env.Response) == 0 {
		return nil
	}
	if err := gojson.Unmarshal(env.Response, out); err != nil {
		return backend.NewFailure(0, fmt.Sprintf("%s: decode response", action), err)
	}
	return nil
}
