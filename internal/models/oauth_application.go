package models

import (
	"database/sql/driver"
	"encoding/base32"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/go-authgate/sallyport/internal/util"

	"golang.org/x/crypto/bcrypt"
)

// Client types
const (
	ClientTypePublic       = "public"
	ClientTypeConfidential = "confidential"
)

// Grant types
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeRefreshToken      = "refresh_token"
)

// ResponseTypeCode is the only response type the authorize endpoint issues.
const ResponseTypeCode = "code"

// Base32 characters, but lowercased.
const lowerBase32Chars = "abcdefghijklmnopqrstuvwxyz234567"

// base32 encoder that uses lowered characters without padding.
var base32Lower = base32.NewEncoding(lowerBase32Chars).WithPadding(base32.NoPadding)

// OAuthApplication is a registered client.
type OAuthApplication struct {
	ID            int64       `gorm:"primaryKey;autoIncrement"                     json:"-"`
	ClientID      string      `gorm:"uniqueIndex;not null"                         json:"client_id"`
	ClientSecret  string      `gorm:"not null;default:''"                          json:"-"` // bcrypt hashed secret
	ClientName    string      `gorm:"not null"                                     json:"client_name"`
	ClientType    string      `gorm:"not null;default:'confidential'"              json:"client_type"`
	GrantTypes    StringArray `gorm:"type:json"                                    json:"grant_types"`
	ResponseTypes StringArray `gorm:"type:json"                                    json:"response_types"`
	Scopes        StringArray `gorm:"type:json"                                    json:"scopes"`
	RedirectURIs  StringArray `gorm:"type:json"                                    json:"redirect_uris"`
	TenantID      string      `gorm:"index"                                        json:"tenant_id,omitempty"`
	IsActive      bool        `gorm:"not null"                                     json:"is_active"`
	CreatedAt     time.Time   `                                                    json:"created_at"`
	UpdatedAt     time.Time   `                                                    json:"updated_at"`
}

// IsPublic reports whether the client cannot keep a secret.
func (app *OAuthApplication) IsPublic() bool {
	return app.ClientType == ClientTypePublic
}

// AllowsGrantType reports whether the client is registered for grantType.
func (app *OAuthApplication) AllowsGrantType(grantType string) bool {
	return app.GrantTypes.Contains(grantType)
}

// AllowsResponseType reports whether the client is registered for responseType.
func (app *OAuthApplication) AllowsResponseType(responseType string) bool {
	return app.ResponseTypes.Contains(responseType)
}

// AllowsScopes reports whether every requested scope is registered for the client.
func (app *OAuthApplication) AllowsScopes(requested []string) bool {
	for _, s := range requested {
		if !app.Scopes.Contains(s) {
			return false
		}
	}
	return true
}

// MatchRedirectURI reports whether candidate matches a registered redirect pattern.
func (app *OAuthApplication) MatchRedirectURI(candidate string) bool {
	for _, pattern := range app.RedirectURIs {
		if util.MatchRedirectURI(pattern, candidate) {
			return true
		}
	}
	return false
}

// GenerateClientSecret generates a client secret, stores its hash on the
// application and returns the plaintext.
func (app *OAuthApplication) GenerateClientSecret() (string, error) {
	rBytes, err := util.CryptoRandomBytes(32)
	if err != nil {
		return "", err
	}
	// Add a prefix to the base32, this is in order to make it easier
	// for code scanners to grab sensitive tokens.
	clientSecret := "spk_" + base32Lower.EncodeToString(rBytes)

	if err := app.SetClientSecret(clientSecret); err != nil {
		return "", err
	}
	return clientSecret, nil
}

// SetClientSecret hashes secret and stores it on the application.
func (app *OAuthApplication) SetClientSecret(secret string) error {
	hashedSecret, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	app.ClientSecret = string(hashedSecret)
	return nil
}

// ValidateClientSecret validates the given secret by the hash saved in database
func (app *OAuthApplication) ValidateClientSecret(secret []byte) bool {
	return bcrypt.CompareHashAndPassword([]byte(app.ClientSecret), secret) == nil
}

// TableName overrides the table name used by OAuthApplication to `oauth_applications`
func (OAuthApplication) TableName() string {
	return "oauth_applications"
}

// StringArray is a custom type for []string that can be stored as JSON in database
type StringArray []string

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("failed to unmarshal JSON value")
	}
}

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}

// Join returns a string with elements joined by the specified separator
func (s StringArray) Join(sep string) string {
	return strings.Join(s, sep)
}

// Contains reports whether v is an element of s.
func (s StringArray) Contains(v string) bool {
	return slices.Contains(s, v)
}
