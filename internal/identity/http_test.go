package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "apihub/pkg/domain"
)

const testEnv = id.EnvironmentID("production")

type HTTPConnectorSuite struct {
	suite.Suite
	server    *httptest.Server
	handler   http.HandlerFunc
	connector *HTTPConnector
}

func TestHTTPConnectorSuite(t *testing.T) {
	suite.Run(t, new(HTTPConnectorSuite))
}

func (s *HTTPConnectorSuite) SetupTest() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handler(w, r)
	}))
	s.connector = NewHTTPConnector(map[id.EnvironmentID]Endpoint{
		testEnv: {BaseURL: s.server.URL, APIKey: "prod-key"},
	}, time.Second)
}

func (s *HTTPConnectorSuite) TearDownTest() {
	s.server.Close()
}

func (s *HTTPConnectorSuite) respond(status int, body any) {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}
}

func (s *HTTPConnectorSuite) kind(err error) Kind {
	s.Require().Error(err)
	var e *Error
	s.Require().ErrorAs(err, &e)
	s.Equal(testEnv, e.Environment)
	return e.Kind
}

func (s *HTTPConnectorSuite) TestFetchClientScopes() {
	s.Run("sends credentials and parses scopes", func() {
		var gotAuth, gotPath string
		s.handler = func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			_, _ = w.Write([]byte(`{"scopes":["read:a","write:b"]}`))
		}
		scopes, err := s.connector.FetchClientScopes(context.Background(), testEnv, "client-1")
		s.Require().NoError(err)
		s.Equal([]string{"read:a", "write:b"}, scopes)
		s.Equal("Bearer prod-key", gotAuth)
		s.Equal("/clients/client-1/client-scopes", gotPath)
	})

	s.Run("malformed body is an unexpected response", func() {
		s.handler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}
		_, err := s.connector.FetchClientScopes(context.Background(), testEnv, "client-1")
		s.Equal(KindUnexpectedResponse, s.kind(err))
	})

	s.Run("missing scopes field is an unexpected response", func() {
		s.respond(http.StatusOK, map[string]any{"other": true})
		_, err := s.connector.FetchClientScopes(context.Background(), testEnv, "client-1")
		s.Equal(KindUnexpectedResponse, s.kind(err))
	})

	s.Run("not found", func() {
		s.respond(http.StatusNotFound, map[string]string{"error": "client_not_found"})
		_, err := s.connector.FetchClientScopes(context.Background(), testEnv, "missing")
		s.Equal(KindClientNotFound, s.kind(err))
	})
}

func (s *HTTPConnectorSuite) TestStatusClassification() {
	cases := []struct {
		status int
		want   Kind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindUnauthorized},
		{http.StatusBadGateway, KindCallError},
		{http.StatusServiceUnavailable, KindCallError},
		{http.StatusGatewayTimeout, KindTimeout},
		{http.StatusTeapot, KindUnexpectedResponse},
	}
	for _, tc := range cases {
		s.Run(http.StatusText(tc.status), func() {
			s.respond(tc.status, nil)
			err := s.connector.AddClientScope(context.Background(), testEnv, "client-1", "read:a")
			s.Equal(tc.want, s.kind(err))
		})
	}
}

func (s *HTTPConnectorSuite) TestAddClientScopeIsIdempotent() {
	var method, path string
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusConflict)
	}
	s.NoError(s.connector.AddClientScope(context.Background(), testEnv, "client-1", "read:a"))
	s.Equal(http.MethodPut, method)
	s.Equal("/clients/client-1/client-scopes/read:a", path)
}

func (s *HTTPConnectorSuite) TestRemoveClientScope() {
	s.Run("absent scope succeeds", func() {
		s.respond(http.StatusNotFound, map[string]string{"error": "scope_not_found"})
		s.NoError(s.connector.RemoveClientScope(context.Background(), testEnv, "client-1", "read:a"))
	})

	s.Run("absent client fails", func() {
		s.respond(http.StatusNotFound, map[string]string{"error": "client_not_found"})
		err := s.connector.RemoveClientScope(context.Background(), testEnv, "client-1", "read:a")
		s.Equal(KindClientNotFound, s.kind(err))
	})
}

func (s *HTTPConnectorSuite) TestCreateClient() {
	var got createClientRequest
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"clientId":"c-9","clientSecret":"s3cr3t"}`))
	}
	client, err := s.connector.CreateClient(context.Background(), testEnv, "billing")
	s.Require().NoError(err)
	s.Equal(Client{ClientID: "c-9", ClientSecret: "s3cr3t"}, client)
	s.Equal("billing", got.Name)

	s.respond(http.StatusCreated, map[string]string{"clientSecret": "x"})
	_, err = s.connector.CreateClient(context.Background(), testEnv, "billing")
	s.Equal(KindUnexpectedResponse, s.kind(err))
}

func (s *HTTPConnectorSuite) TestDeleteClientToleratesMissing() {
	s.respond(http.StatusNotFound, nil)
	s.NoError(s.connector.DeleteClient(context.Background(), testEnv, "gone"))
}

func (s *HTTPConnectorSuite) TestTimeout() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.connector.FetchClientScopes(ctx, testEnv, "client-1")
	s.Equal(KindTimeout, s.kind(err))
}

func (s *HTTPConnectorSuite) TestCallerCancellation() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := s.connector.FetchClientScopes(ctx, testEnv, "client-1")
	s.Equal(KindCanceled, s.kind(err))
	s.False(CountsAsFailure(err))
}

func (s *HTTPConnectorSuite) TestUnreachable() {
	s.server.Close()
	_, err := s.connector.FetchClientScopes(context.Background(), testEnv, "client-1")
	s.Equal(KindCallError, s.kind(err))
}

func (s *HTTPConnectorSuite) TestUnknownEnvironment() {
	err := s.connector.AddClientScope(context.Background(), "staging", "client-1", "read:a")
	s.Require().Error(err)
	s.Equal(KindCallError, KindOf(err))
}
