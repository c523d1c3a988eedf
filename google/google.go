package google

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"golang.org/x/net/context"
	"golang.org/x/oauth2/google"
	analytics "google.golang.org/api/analytics/v3"
	"google.golang.org/api/option"
	tagmanager "google.golang.org/api/tagmanager/v2"
)

// OAuth scopes used by the admin jobs
const (
	ScopeAnalyticsReadonly    = analytics.AnalyticsReadonlyScope
	ScopeAnalyticsManageUsers = analytics.AnalyticsManageUsersScope
	ScopeTagManagerContainers = tagmanager.TagmanagerEditContainersScope
)

type GoogleAuth struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
}

// CredentialsConfig is the "Google" section of the app config. Either KeyFile
// points at a service-account key on disk, or Auth carries the key inline
// (e.g. when it was fetched from an object store instead of a filesystem).
type CredentialsConfig struct {
	KeyFile string
	Auth    GoogleAuth
}

func ReadCredentialsConfig(data json.RawMessage) (CredentialsConfig, error) {
	var creds CredentialsConfig
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("unable to unmarshal Google credential configuration, error: %s", err)
	}
	if creds.KeyFile == "" && creds.Auth.ClientEmail == "" {
		return creds, fmt.Errorf("google credential configuration needs a KeyFile path or an inline Auth key")
	}
	return creds, nil
}

// AuthFromKeyFile reads a service-account JSON key from disk. It is the
// file-path construction variant; the in-memory variant takes a GoogleAuth
// directly.
func AuthFromKeyFile(path string) (GoogleAuth, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return GoogleAuth{}, fmt.Errorf("unable to read key file %s, error: %s", path, err)
	}
	return AuthFromJSON(data)
}

func AuthFromJSON(data []byte) (GoogleAuth, error) {
	var auth GoogleAuth
	if err := json.Unmarshal(data, &auth); err != nil {
		return GoogleAuth{}, fmt.Errorf("unable to unmarshal service account key, error: %s", err)
	}
	return auth, nil
}

func (c CredentialsConfig) resolveAuth() (GoogleAuth, error) {
	if c.KeyFile != "" {
		return AuthFromKeyFile(c.KeyFile)
	}
	return c.Auth, nil
}

// initHTTPClient authenticates with the Google API and returns an HTTP client
// carrying a JWT service-account token source for the requested scopes.
func initHTTPClient(ctx context.Context, auth GoogleAuth, scopes ...string) (*http.Client, error) {
	googleAuthJson, err := json.Marshal(auth)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal google auth data into json, error: %s", err.Error())
	}

	config, err := google.JWTConfigFromJSON(googleAuthJson, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %s", err)
	}

	return config.Client(ctx), nil
}

// NewAnalyticsService returns an Analytics Management API v3 client for the
// given in-memory service-account key.
func NewAnalyticsService(auth GoogleAuth, scopes ...string) (*analytics.Service, error) {
	ctx := context.Background()
	client, err := initHTTPClient(ctx, auth, scopes...)
	if err != nil {
		return nil, err
	}

	svc, err := analytics.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve analytics Service: %s", err)
	}
	return svc, nil
}

func NewAnalyticsServiceFromKeyFile(path string, scopes ...string) (*analytics.Service, error) {
	auth, err := AuthFromKeyFile(path)
	if err != nil {
		return nil, err
	}
	return NewAnalyticsService(auth, scopes...)
}

// NewTagManagerService returns a Tag Manager API v2 client for the given
// in-memory service-account key.
func NewTagManagerService(auth GoogleAuth, scopes ...string) (*tagmanager.Service, error) {
	ctx := context.Background()
	client, err := initHTTPClient(ctx, auth, scopes...)
	if err != nil {
		return nil, err
	}

	svc, err := tagmanager.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve tagmanager Service: %s", err)
	}
	return svc, nil
}

func NewTagManagerServiceFromKeyFile(path string, scopes ...string) (*tagmanager.Service, error) {
	auth, err := AuthFromKeyFile(path)
	if err != nil {
		return nil, err
	}
	return NewTagManagerService(auth, scopes...)
}
