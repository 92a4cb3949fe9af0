package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-authgate/sallyport/internal/models"

	"sigs.k8s.io/yaml"
)

// SeedClient is one entry of a seed file. Files may be YAML or JSON.
//
//	- client_id: acme
//	  client_secret: s3cret
//	  client_type: confidential
//	  grant_types: [authorization_code, refresh_token]
//	  scopes: [openid, orders]
//	  redirect_uris: ["https://app.acme.test/cb"]
type SeedClient struct {
	ClientID      string   `json:"client_id"`
	ClientSecret  string   `json:"client_secret,omitempty"`
	ClientName    string   `json:"client_name,omitempty"`
	ClientType    string   `json:"client_type,omitempty"`
	GrantTypes    []string `json:"grant_types,omitempty"`
	ResponseTypes []string `json:"response_types,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	RedirectURIs  []string `json:"redirect_uris,omitempty"`
	TenantID      string   `json:"tenant_id,omitempty"`
	Disabled      bool     `json:"disabled,omitempty"`
}

// Application converts the entry to a registration, hashing the secret.
func (sc SeedClient) Application() (*models.OAuthApplication, error) {
	if strings.TrimSpace(sc.ClientID) == "" {
		return nil, fmt.Errorf("client_id is required")
	}

	app := &models.OAuthApplication{
		ClientID:      sc.ClientID,
		ClientName:    sc.ClientName,
		ClientType:    sc.ClientType,
		GrantTypes:    models.StringArray(sc.GrantTypes),
		ResponseTypes: models.StringArray(sc.ResponseTypes),
		Scopes:        models.StringArray(sc.Scopes),
		RedirectURIs:  models.StringArray(sc.RedirectURIs),
		TenantID:      sc.TenantID,
		IsActive:      !sc.Disabled,
	}
	if app.ClientName == "" {
		app.ClientName = sc.ClientID
	}
	if app.ClientType == "" {
		app.ClientType = models.ClientTypeConfidential
	}
	if app.ClientType != models.ClientTypePublic && app.ClientType != models.ClientTypeConfidential {
		return nil, fmt.Errorf("client %q: invalid client_type %q", sc.ClientID, sc.ClientType)
	}
	if len(app.GrantTypes) == 0 {
		app.GrantTypes = models.StringArray{models.GrantTypeAuthorizationCode}
	}
	if len(app.ResponseTypes) == 0 && app.AllowsGrantType(models.GrantTypeAuthorizationCode) {
		app.ResponseTypes = models.StringArray{models.ResponseTypeCode}
	}

	if app.IsPublic() {
		return app, nil
	}
	if sc.ClientSecret == "" {
		return nil, fmt.Errorf("client %q: confidential clients need a client_secret", sc.ClientID)
	}
	if err := app.SetClientSecret(sc.ClientSecret); err != nil {
		return nil, fmt.Errorf("client %q: %w", sc.ClientID, err)
	}
	return app, nil
}

// ParseSeedClients decodes a YAML or JSON list of clients.
func ParseSeedClients(data []byte) ([]SeedClient, error) {
	var clients []SeedClient
	if err := yaml.Unmarshal(data, &clients); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	return clients, nil
}

// SeedClientsFromFile upserts every client listed in path and returns how
// many were written.
func (s *Store) SeedClientsFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return 0, err
	}
	clients, err := ParseSeedClients(data)
	if err != nil {
		return 0, err
	}

	for i, sc := range clients {
		app, err := sc.Application()
		if err != nil {
			return i, err
		}
		if err := s.UpsertClient(ctx, app); err != nil {
			return i, fmt.Errorf("client %q: %w", sc.ClientID, err)
		}
	}
	return len(clients), nil
}
