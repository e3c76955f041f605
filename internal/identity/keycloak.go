package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"euphony/internal/apperr"
	"euphony/internal/config"
	"euphony/internal/metrics"
	"euphony/internal/retry"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const pageSize = 100

type userRepresentation struct {
	ID            string `json:"id,omitempty"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Enabled       *bool  `json:"enabled,omitempty"`
	EmailVerified *bool  `json:"emailVerified,omitempty"`
}

func (u userRepresentation) record() Record {
	r := Record{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	if u.Enabled != nil {
		r.Enabled = *u.Enabled
	}
	if u.EmailVerified != nil {
		r.EmailVerified = *u.EmailVerified
	}
	return r
}

// replaceRepresentation sends blank strings too, so a PUT clears them.
type replaceRepresentation struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type roleRepresentation struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	ClientRole  bool   `json:"clientRole,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
}

type clientRepresentation struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
}

type errorRepresentation struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"errorMessage"`
}

// KeycloakGateway implements Gateway against the Keycloak admin REST API.
type KeycloakGateway struct {
	cfg       config.KeycloakConfig
	baseURL   string
	transport *http.Transport
	client    *http.Client
	limiter   *rate.Limiter
	reads     retry.Config
	logger    *logrus.Entry
	metrics   *metrics.Metrics

	mu         sync.Mutex
	clientUUID string
}

// passwordSource fetches admin tokens with the resource owner password grant.
type passwordSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s *passwordSource) Token() (*oauth2.Token, error) {
	return s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
}

// NewKeycloak builds a gateway with one bounded connection pool shared by
// the token endpoint and the admin API. Close must be called on shutdown.
func NewKeycloak(cfg config.KeycloakConfig, logger *logrus.Entry, m *metrics.Metrics) (*KeycloakGateway, error) {
	if cfg.ServerURL == "" || cfg.Realm == "" {
		return nil, errors.New("keycloak server URL and realm are required")
	}
	if cfg.PoolSize <= 0 {
		return nil, fmt.Errorf("keycloak pool size must be positive, got %d", cfg.PoolSize)
	}
	if cfg.MasterRealm == "" {
		cfg.MasterRealm = "master"
	}
	if cfg.AdminClientID == "" {
		cfg.AdminClientID = "admin-cli"
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = "default_role"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	server := strings.TrimRight(cfg.ServerURL, "/")
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxConnsPerHost:     cfg.PoolSize,
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		IdleConnTimeout:     90 * time.Second,
	}
	tokenClient := &http.Client{Transport: transport, Timeout: cfg.Timeout}

	conf := &oauth2.Config{
		ClientID:     cfg.AdminClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", server, url.PathEscape(cfg.MasterRealm)),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	source := oauth2.ReuseTokenSource(nil, &passwordSource{
		ctx:      context.WithValue(context.Background(), oauth2.HTTPClient, tokenClient),
		conf:     conf,
		username: cfg.AdminUser,
		password: cfg.AdminPassword,
	})

	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	reads := retry.DefaultConfig()
	reads.MaxAttempts = cfg.ReadRetries
	reads.Retryable = func(err error) bool {
		return apperr.KindOf(err) == apperr.KindInternal && !errors.Is(err, context.Canceled)
	}

	return &KeycloakGateway{
		cfg:       cfg,
		baseURL:   fmt.Sprintf("%s/admin/realms/%s", server, url.PathEscape(cfg.Realm)),
		transport: transport,
		client: &http.Client{
			Transport: &oauth2.Transport{Source: source, Base: transport},
		},
		limiter: rate.NewLimiter(limit, burst),
		reads:   reads,
		logger:  logger,
		metrics: m,
	}, nil
}

// Close drops idle connections of the shared pool.
func (g *KeycloakGateway) Close() error {
	g.transport.CloseIdleConnections()
	return nil
}

// do performs one admin API call. It returns the response headers on 2xx
// and maps error statuses onto apperr kinds.
func (g *KeycloakGateway) do(ctx context.Context, op, method, endpoint string, query url.Values, body, out interface{}) (http.Header, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, apperr.Internal(op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	target := g.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apperr.Internal(op, fmt.Errorf("failed to encode request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, apperr.Internal(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.metrics.IdentityRequest(op, "error", time.Since(start))
		return nil, apperr.Internal(op, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()
	g.metrics.IdentityRequest(op, fmt.Sprintf("%dxx", resp.StatusCode/100), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(op, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, apperr.Internal(op, fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return resp.Header, nil
}

// read retries idempotent GETs on transport and server failures.
func (g *KeycloakGateway) read(ctx context.Context, op, endpoint string, query url.Values, out interface{}) error {
	_, err := retry.Do(ctx, g.reads, func(ctx context.Context) (struct{}, error) {
		_, err := g.do(ctx, op, http.MethodGet, endpoint, query, nil, out)
		return struct{}{}, err
	})
	return err
}

func statusError(op string, resp *http.Response) error {
	var detail errorRepresentation
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &detail)
	msg := detail.ErrorMessage
	if msg == "" {
		msg = detail.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		if msg == "" {
			msg = "identity not found"
		}
		return apperr.NotFound(op, msg)
	case http.StatusConflict:
		if msg == "" {
			msg = "identity already exists"
		}
		return apperr.Conflict(op, msg)
	case http.StatusBadRequest:
		if msg == "" {
			msg = "rejected by identity provider"
		}
		return apperr.Validation(op, map[string]string{"identity": msg})
	default:
		return apperr.Wrap(apperr.KindInternal, op, "identity provider error",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
}

func (g *KeycloakGateway) FindAll(ctx context.Context) ([]Record, error) {
	var records []Record
	for first := 0; ; first += pageSize {
		var page []userRepresentation
		query := url.Values{"first": {fmt.Sprint(first)}, "max": {fmt.Sprint(pageSize)}}
		if err := g.read(ctx, "identity.find_all", "/users", query, &page); err != nil {
			return nil, err
		}
		for _, u := range page {
			records = append(records, u.record())
		}
		if len(page) < pageSize {
			return records, nil
		}
	}
}

func (g *KeycloakGateway) FindByUsername(ctx context.Context, username string) (*Record, error) {
	const op = "identity.find_by_username"
	if strings.TrimSpace(username) == "" {
		return nil, apperr.Validation(op, map[string]string{"username": "username is required"})
	}

	var found []userRepresentation
	query := url.Values{"username": {username}, "exact": {"true"}}
	if err := g.read(ctx, op, "/users", query, &found); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperr.NotFound(op, fmt.Sprintf("identity %s not found", username))
	}

	record := found[0].record()
	roles, err := g.GetRoles(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	record.Roles = roles
	return &record, nil
}

func (g *KeycloakGateway) FindByID(ctx context.Context, id string) (*Record, error) {
	var u userRepresentation
	if err := g.read(ctx, "identity.find_by_id", "/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	record := u.record()
	return &record, nil
}

// Create registers an enabled identity with a verified email and returns the
// id taken from the Location header.
func (g *KeycloakGateway) Create(ctx context.Context, fields UserFields) (string, error) {
	const op = "identity.create"
	if strings.TrimSpace(fields.Username) == "" || strings.TrimSpace(fields.Email) == "" {
		return "", apperr.Validation(op, map[string]string{"identity": "username and email are required"})
	}

	enabled, verified := true, true
	if fields.Enabled != nil {
		enabled = *fields.Enabled
	}
	rep := userRepresentation{
		Username:      fields.Username,
		Email:         fields.Email,
		FirstName:     fields.FirstName,
		LastName:      fields.LastName,
		Enabled:       &enabled,
		EmailVerified: &verified,
	}

	header, err := g.do(ctx, op, http.MethodPost, "/users", nil, rep, nil)
	if err != nil {
		return "", err
	}
	location := header.Get("Location")
	if location == "" {
		return "", apperr.Internal(op, errors.New("identity provider returned no location"))
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", apperr.Internal(op, fmt.Errorf("invalid location %q: %w", location, err))
	}
	id := path.Base(u.Path)

	g.logger.WithField("user_id", id).Info("identity created")
	return id, nil
}

func (g *KeycloakGateway) SetPassword(ctx context.Context, id, password string) error {
	cred := credentialRepresentation{Type: "password", Value: password, Temporary: false}
	_, err := g.do(ctx, "identity.set_password", http.MethodPut,
		"/users/"+url.PathEscape(id)+"/reset-password", nil, cred, nil)
	return err
}

func (g *KeycloakGateway) Update(ctx context.Context, id string, fields UserFields) error {
	var rep interface{} = userRepresentation{
		Username:  fields.Username,
		Email:     fields.Email,
		FirstName: fields.FirstName,
		LastName:  fields.LastName,
		Enabled:   fields.Enabled,
	}
	if fields.Replace {
		rep = replaceRepresentation{
			Username:  fields.Username,
			Email:     fields.Email,
			FirstName: fields.FirstName,
			LastName:  fields.LastName,
			Enabled:   fields.Enabled,
		}
	}
	_, err := g.do(ctx, "identity.update", http.MethodPut, "/users/"+url.PathEscape(id), nil, rep, nil)
	return err
}

func (g *KeycloakGateway) Delete(ctx context.Context, id string) error {
	_, err := g.do(ctx, "identity.delete", http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil, nil)
	if err == nil {
		g.logger.WithField("user_id", id).Info("identity deleted")
	}
	return err
}

// resolveClient returns the internal id of the role-scoping client. Found ids
// are cached; a missing client is looked up again on the next call.
func (g *KeycloakGateway) resolveClient(ctx context.Context) (string, error) {
	const op = "identity.resolve_client"
	g.mu.Lock()
	cached := g.clientUUID
	g.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	var clients []clientRepresentation
	if err := g.read(ctx, op, "/clients", url.Values{"clientId": {g.cfg.ClientID}}, &clients); err != nil {
		return "", err
	}
	if len(clients) == 0 {
		return "", apperr.NotFound(op, fmt.Sprintf("client %s is not configured in realm %s", g.cfg.ClientID, g.cfg.Realm))
	}

	g.mu.Lock()
	g.clientUUID = clients[0].ID
	g.mu.Unlock()
	return clients[0].ID, nil
}

func (g *KeycloakGateway) AssignRoles(ctx context.Context, id string, names []string) ([]string, error) {
	const op = "identity.assign_roles"
	clientUUID, err := g.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	var catalog []roleRepresentation
	if err := g.read(ctx, op, "/clients/"+url.PathEscape(clientUUID)+"/roles", nil, &catalog); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var selected []roleRepresentation
	var defaultRole *roleRepresentation
	for i, role := range catalog {
		if wanted[role.Name] {
			selected = append(selected, role)
		}
		if role.Name == g.cfg.DefaultRole {
			defaultRole = &catalog[i]
		}
	}
	if len(selected) == 0 {
		if defaultRole == nil {
			return nil, apperr.NotFound(op, fmt.Sprintf("default role %s is not defined on client %s", g.cfg.DefaultRole, g.cfg.ClientID))
		}
		selected = []roleRepresentation{*defaultRole}
	}

	endpoint := "/users/" + url.PathEscape(id) + "/role-mappings/clients/" + url.PathEscape(clientUUID)
	if _, err := g.do(ctx, op, http.MethodPost, endpoint, nil, selected, nil); err != nil {
		return nil, err
	}

	assigned := make([]string, 0, len(selected))
	for _, role := range selected {
		assigned = append(assigned, role.Name)
	}
	return assigned, nil
}

func (g *KeycloakGateway) GetRoles(ctx context.Context, id string) ([]string, error) {
	const op = "identity.get_roles"
	clientUUID, err := g.resolveClient(ctx)
	if apperr.Is(err, apperr.KindNotFound) {
		g.logger.WithField("client_id", g.cfg.ClientID).Info("client not configured, no roles to report")
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var mapped []roleRepresentation
	endpoint := "/users/" + url.PathEscape(id) + "/role-mappings/clients/" + url.PathEscape(clientUUID)
	if err := g.read(ctx, op, endpoint, nil, &mapped); err != nil {
		return nil, err
	}

	roles := make([]string, 0, len(mapped))
	for _, role := range mapped {
		roles = append(roles, role.Name)
	}
	return roles, nil
}
