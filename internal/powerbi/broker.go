// Package powerbi implements the embed-token broker: it exchanges the stored
// service-principal credentials for an Azure AD access token, resolves report
// metadata, and generates view-only embed tokens for the frontend.
//
// Two timeouts apply — 10 seconds for the Azure AD token endpoint and 15
// seconds for the Power BI REST API. Tokens are acquired per request and never
// cached: credential changes made by an admin must take effect on the very
// next embed call, and the marginal latency of the token round-trip is small
// next to report rendering.
package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/portal-boost/portal/internal/config"
	"github.com/portal-boost/portal/internal/crypto"
	"github.com/portal-boost/portal/internal/db/models"
	"github.com/portal-boost/portal/internal/db/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.powerbi.com/v1.0/myorg"
	defaultTokenURLTmpl = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	powerBIScope        = "https://analysis.windows.net/powerbi/api/.default"

	tokenTimeout = 10 * time.Second
	apiTimeout   = 15 * time.Second
)

var (
	// ErrNotConfigured is returned when no usable service-principal
	// credentials exist, neither in the database nor in the bootstrap config.
	ErrNotConfigured = errors.New("power bi credentials not configured")

	// ErrReportNotFound is returned when the upstream API reports 404 for
	// the requested workspace/report pair.
	ErrReportNotFound = errors.New("report not found")
)

// UpstreamError wraps a non-404 failure response from Azure AD or the
// Power BI API. The body is truncated and safe to log; it never contains
// the credentials that were used.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("power bi %s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Credentials is a decrypted service-principal credential set.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Report is the subset of report metadata the portal needs.
type Report struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	EmbedURL string `json:"embedUrl"`
	WebURL   string `json:"webUrl"`
}

// EmbedToken is a generated view-only embed token.
type EmbedToken struct {
	Token      string    `json:"token"`
	TokenID    string    `json:"tokenId"`
	Expiration time.Time `json:"expiration"`
}

// EmbedDetails bundles everything the frontend needs to render a report.
type EmbedDetails struct {
	ReportID        string    `json:"report_id"`
	ReportName      string    `json:"report_name"`
	EmbedURL        string    `json:"embed_url"`
	Token           string    `json:"token"`
	Expiration      time.Time `json:"expiration"`
	DefaultPageName string    `json:"default_page_name,omitempty"`
	ShowFilterPane  bool      `json:"show_filter_pane"`
}

// Broker acquires Azure AD tokens and Power BI embed tokens on demand.
type Broker struct {
	settings  *repositories.AzureSettingsRepository
	cipher    *crypto.SecretCipher
	bootstrap *config.PowerBIConfig

	apiBaseURL   string
	tokenURLTmpl string
	apiClient    *http.Client
	tokenClient  *http.Client
}

// NewBroker creates a Broker. bootstrap supplies fallback credentials from
// the config file for deployments that have not stored any via the admin API.
func NewBroker(settings *repositories.AzureSettingsRepository, cipher *crypto.SecretCipher, bootstrap *config.PowerBIConfig) *Broker {
	return &Broker{
		settings:     settings,
		cipher:       cipher,
		bootstrap:    bootstrap,
		apiBaseURL:   defaultAPIBaseURL,
		tokenURLTmpl: defaultTokenURLTmpl,
		apiClient:    &http.Client{Timeout: apiTimeout},
		tokenClient:  &http.Client{Timeout: tokenTimeout},
	}
}

// LoadCredentials resolves the active credential set: the database row wins,
// the bootstrap config is the fallback. The stored client secret is decrypted
// with the key that is current at call time.
func (b *Broker) LoadCredentials(ctx context.Context) (*Credentials, error) {
	stored, err := b.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load azure settings: %w", err)
	}
	if stored != nil {
		secret, err := b.cipher.Open(stored.ClientSecretCipher)
		if err != nil {
			return nil, fmt.Errorf("decrypt client secret: %w", err)
		}
		return &Credentials{
			TenantID:     stored.TenantID,
			ClientID:     stored.ClientID,
			ClientSecret: secret,
		}, nil
	}

	if b.bootstrap != nil && b.bootstrap.TenantID != "" && b.bootstrap.ClientID != "" && b.bootstrap.ClientSecret != "" {
		return &Credentials{
			TenantID:     b.bootstrap.TenantID,
			ClientID:     b.bootstrap.ClientID,
			ClientSecret: b.bootstrap.ClientSecret,
		}, nil
	}

	return nil, ErrNotConfigured
}

// AcquireAccessToken performs the client-credentials grant against Azure AD
// and returns a bearer token for the Power BI API.
func (b *Broker) AcquireAccessToken(ctx context.Context, creds *Credentials) (string, error) {
	cfg := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     fmt.Sprintf(b.tokenURLTmpl, creds.TenantID),
		Scopes:       []string{powerBIScope},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.tokenClient)
	token, err := cfg.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", &UpstreamError{
				Operation:  "token acquisition",
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       truncate(string(retrieveErr.Body), 512),
			}
		}
		return "", fmt.Errorf("acquire azure ad token: %w", err)
	}
	return token.AccessToken, nil
}

// GetReport fetches report metadata from the workspace.
func (b *Broker) GetReport(ctx context.Context, accessToken, workspaceID, reportID string) (*Report, error) {
	reqURL := fmt.Sprintf("%s/groups/%s/reports/%s", b.apiBaseURL, workspaceID, reportID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create report request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := b.apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrReportNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{Operation: "report fetch", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("decode report response: %w", err)
	}
	return &report, nil
}

// GenerateEmbedToken generates a view-only embed token for the report.
// datasetID is optional; when set it is included so reports backed by a
// shared dataset embed correctly.
func (b *Broker) GenerateEmbedToken(ctx context.Context, accessToken, workspaceID, reportID, datasetID string) (*EmbedToken, error) {
	reqURL := fmt.Sprintf("%s/groups/%s/reports/%s/GenerateToken", b.apiBaseURL, workspaceID, reportID)

	payload := map[string]any{
		"accessLevel": "View",
		"allowSaveAs": false,
	}
	if datasetID != "" {
		payload["datasetId"] = datasetID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.apiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate embed token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrReportNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{Operation: "embed token generation", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var token EmbedToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &token, nil
}

// GetEmbedDetails runs the full chain for a page: credentials, Azure AD
// token, report metadata, embed token.
func (b *Broker) GetEmbedDetails(ctx context.Context, page *models.Page) (*EmbedDetails, error) {
	creds, err := b.LoadCredentials(ctx)
	if err != nil {
		return nil, err
	}

	accessToken, err := b.AcquireAccessToken(ctx, creds)
	if err != nil {
		return nil, err
	}

	report, err := b.GetReport(ctx, accessToken, page.WorkspaceID, page.ReportID)
	if err != nil {
		return nil, err
	}

	embedToken, err := b.GenerateEmbedToken(ctx, accessToken, page.WorkspaceID, page.ReportID, page.DatasetID)
	if err != nil {
		return nil, err
	}

	details := &EmbedDetails{
		ReportID:       report.ID,
		ReportName:     report.Name,
		EmbedURL:       report.EmbedURL,
		Token:          embedToken.Token,
		Expiration:     embedToken.Expiration,
		ShowFilterPane: page.ShowFilterPane,
	}
	if page.DefaultPageName.Valid {
		details.DefaultPageName = page.DefaultPageName.String
	}
	return details, nil
}

// VerifyCredentials acquires a token with the supplied credentials without
// touching any report. Used by the admin API to validate settings before
// they are stored.
func (b *Broker) VerifyCredentials(ctx context.Context, creds *Credentials) error {
	_, err := b.AcquireAccessToken(ctx, creds)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
