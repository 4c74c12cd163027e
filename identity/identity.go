package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	relayerr "github.com/hypersoc/relay/errors"
)

// CredentialProvider supplies bearer credentials for calls to the remote
// agent service. Failures surface through the orchestrator's caught-error
// path; they are not retried here.
type CredentialProvider interface {
	// Token returns a credential valid at the time of the call.
	Token(ctx context.Context) (string, error)
}

// Static is a fixed-key credential, used for direct API-key auth and tests.
type Static string

// Token returns the static key.
func (s Static) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty static credential: %w", relayerr.ErrCredential)
	}
	return string(s), nil
}

const (
	defaultMetadataEndpoint = "http://169.254.169.254/metadata/identity/oauth2/token"
	defaultResource         = "https://cognitiveservices.azure.com"
	metadataAPIVersion      = "2018-02-01"

	// tokens are refreshed this long before they expire
	refreshSkew = 5 * time.Minute
)

// ManagedIdentity acquires tokens for a user-assigned managed identity from
// the instance metadata service, caching them until shortly before expiry.
type ManagedIdentity struct {
	clientID string
	endpoint string
	resource string
	client   *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// ManagedIdentityOption configures a ManagedIdentity provider.
type ManagedIdentityOption func(*ManagedIdentity)

// WithMetadataEndpoint overrides the metadata token endpoint; mainly useful
// for tests.
func WithMetadataEndpoint(endpoint string) ManagedIdentityOption {
	return func(m *ManagedIdentity) {
		m.endpoint = endpoint
	}
}

// WithResource overrides the audience the token is requested for.
func WithResource(resource string) ManagedIdentityOption {
	return func(m *ManagedIdentity) {
		m.resource = resource
	}
}

// WithHTTPClient overrides the HTTP client used for token requests.
func WithHTTPClient(client *http.Client) ManagedIdentityOption {
	return func(m *ManagedIdentity) {
		if client != nil {
			m.client = client
		}
	}
}

// NewManagedIdentity creates a provider for the given user-assigned client id.
func NewManagedIdentity(clientID string, opts ...ManagedIdentityOption) *ManagedIdentity {
	m := &ManagedIdentity{
		clientID: clientID,
		endpoint: defaultMetadataEndpoint,
		resource: defaultResource,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresOn   string `json:"expires_on"`
}

// Token returns a cached token when still fresh, fetching a new one otherwise.
func (m *ManagedIdentity) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && time.Now().Before(m.expires.Add(-refreshSkew)) {
		return m.token, nil
	}

	token, expires, err := m.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", relayerr.ErrCredential, err)
	}
	m.token = token
	m.expires = expires
	return m.token, nil
}

func (m *ManagedIdentity) fetch(ctx context.Context) (string, time.Time, error) {
	q := url.Values{}
	q.Set("api-version", metadataAPIVersion)
	q.Set("resource", m.resource)
	if m.clientID != "" {
		q.Set("client_id", m.clientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Metadata", "true")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("metadata service returned status %d", resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to decode token response: %v", err)
	}
	if body.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("metadata service returned empty token")
	}

	expires := time.Now().Add(time.Hour)
	if secs, err := strconv.ParseInt(body.ExpiresOn, 10, 64); err == nil {
		expires = time.Unix(secs, 0)
	}
	return body.AccessToken, expires, nil
}
