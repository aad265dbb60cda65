package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	id "apihub/pkg/domain"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Endpoint is how one environment's identity system is reached.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// HTTPConnector calls the identity system's client administration API:
//
//	GET    {base}/clients/{clientId}/client-scopes
//	PUT    {base}/clients/{clientId}/client-scopes/{scope}
//	DELETE {base}/clients/{clientId}/client-scopes/{scope}
//	POST   {base}/clients
//	DELETE {base}/clients/{clientId}
type HTTPConnector struct {
	endpoints map[id.EnvironmentID]Endpoint
	client    HTTPDoer
}

type HTTPOption func(*HTTPConnector)

func WithHTTPClient(c HTTPDoer) HTTPOption {
	return func(h *HTTPConnector) {
		h.client = c
	}
}

func NewHTTPConnector(endpoints map[id.EnvironmentID]Endpoint, timeout time.Duration, opts ...HTTPOption) *HTTPConnector {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	h := &HTTPConnector{
		endpoints: endpoints,
		client:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type errorBody struct {
	Error string `json:"error"`
}

type scopesBody struct {
	Scopes []string `json:"scopes"`
}

type createClientRequest struct {
	Name string `json:"name"`
}

type createClientResponse struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// upstream error code distinguishing a missing client from a missing scope
const codeClientNotFound = "client_not_found"

func (h *HTTPConnector) FetchClientScopes(ctx context.Context, env id.EnvironmentID, clientID string) ([]string, error) {
	status, body, err := h.do(ctx, env, OpFetchScopes, http.MethodGet, "/clients/"+url.PathEscape(clientID)+"/client-scopes", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, h.statusError(env, OpFetchScopes, status, body)
	}
	var parsed scopesBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newError(KindUnexpectedResponse, env, OpFetchScopes, status, fmt.Errorf("decode scopes: %w", err))
	}
	if parsed.Scopes == nil {
		return nil, newError(KindUnexpectedResponse, env, OpFetchScopes, status, errors.New("response has no scopes field"))
	}
	return parsed.Scopes, nil
}

func (h *HTTPConnector) AddClientScope(ctx context.Context, env id.EnvironmentID, clientID, scope string) error {
	path := "/clients/" + url.PathEscape(clientID) + "/client-scopes/" + url.PathEscape(scope)
	status, body, err := h.do(ctx, env, OpAddScope, http.MethodPut, path, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusConflict:
		return nil
	}
	return h.statusError(env, OpAddScope, status, body)
}

func (h *HTTPConnector) RemoveClientScope(ctx context.Context, env id.EnvironmentID, clientID, scope string) error {
	path := "/clients/" + url.PathEscape(clientID) + "/client-scopes/" + url.PathEscape(scope)
	status, body, err := h.do(ctx, env, OpRemoveScope, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		// An absent scope is success; an absent client is not.
		if upstreamCode(body) != codeClientNotFound {
			return nil
		}
	}
	return h.statusError(env, OpRemoveScope, status, body)
}

func (h *HTTPConnector) CreateClient(ctx context.Context, env id.EnvironmentID, applicationName string) (Client, error) {
	payload, err := json.Marshal(createClientRequest{Name: applicationName})
	if err != nil {
		return Client{}, newError(KindCallError, env, OpCreateClient, 0, err)
	}
	status, body, err := h.do(ctx, env, OpCreateClient, http.MethodPost, "/clients", payload)
	if err != nil {
		return Client{}, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return Client{}, h.statusError(env, OpCreateClient, status, body)
	}
	var parsed createClientResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.ClientID == "" {
		if err == nil {
			err = errors.New("response has no clientId")
		}
		return Client{}, newError(KindUnexpectedResponse, env, OpCreateClient, status, err)
	}
	return Client{ClientID: parsed.ClientID, ClientSecret: parsed.ClientSecret}, nil
}

func (h *HTTPConnector) DeleteClient(ctx context.Context, env id.EnvironmentID, clientID string) error {
	status, body, err := h.do(ctx, env, OpDeleteClient, http.MethodDelete, "/clients/"+url.PathEscape(clientID), nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	}
	return h.statusError(env, OpDeleteClient, status, body)
}

func (h *HTTPConnector) do(ctx context.Context, env id.EnvironmentID, op Operation, method, path string, payload []byte) (int, []byte, error) {
	ep, ok := h.endpoints[env]
	if !ok {
		return 0, nil, newError(KindCallError, env, op, 0, fmt.Errorf("no identity endpoint configured for environment %s", env))
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, ep.BaseURL+path, reqBody)
	if err != nil {
		return 0, nil, newError(KindCallError, env, op, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		switch {
		case isTimeout(ctx, err):
			return 0, nil, newError(KindTimeout, env, op, 0, err)
		case isCanceled(ctx, err):
			return 0, nil, newError(KindCanceled, env, op, 0, err)
		}
		return 0, nil, newError(KindCallError, env, op, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		switch {
		case isTimeout(ctx, err):
			return 0, nil, newError(KindTimeout, env, op, resp.StatusCode, err)
		case isCanceled(ctx, err):
			return 0, nil, newError(KindCanceled, env, op, resp.StatusCode, err)
		}
		return 0, nil, newError(KindUnexpectedResponse, env, op, resp.StatusCode, err)
	}
	return resp.StatusCode, body, nil
}

func (h *HTTPConnector) statusError(env id.EnvironmentID, op Operation, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(KindUnauthorized, env, op, status, nil)
	case status == http.StatusNotFound:
		return newError(KindClientNotFound, env, op, status, nil)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return newError(KindTimeout, env, op, status, nil)
	case status >= http.StatusInternalServerError:
		return newError(KindCallError, env, op, status, nil)
	default:
		return newError(KindUnexpectedResponse, env, op, status, fmt.Errorf("unexpected status: %s", upstreamCode(body)))
	}
}

func upstreamCode(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Error
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isCanceled(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled)
}

var _ Connector = (*HTTPConnector)(nil)
