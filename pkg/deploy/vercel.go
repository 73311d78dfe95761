package deploy

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"resty.dev/v3"
)

// VercelConfig holds Vercel credentials
type VercelConfig struct {
	Token  string
	APIURL string
}

// VercelAdapter creates a production deployment and uploads the zip as its
// files. Uploading the files starts the build.
type VercelAdapter struct {
	config VercelConfig
	client *resty.Client
}

// NewVercelAdapter creates a Vercel adapter
func NewVercelAdapter(config VercelConfig, client *resty.Client) *VercelAdapter {
	return &VercelAdapter{config: config, client: client}
}

func (a *VercelAdapter) Target() Target { return TargetVercel }

func (a *VercelAdapter) CheckCredentials() error {
	if a.config.Token == "" {
		return missingCredential("VERCEL_AUTH_TOKEN")
	}
	return nil
}

type vercelDeployment struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (a *VercelAdapter) Provision(ctx context.Context) (*Site, error) {
	res, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.config.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"target": "production"}).
		Post(joinURL(a.config.APIURL, "/v13/deployments"))
	if err := checkResponse("create deployment", res, err); err != nil {
		return nil, err
	}

	var deployment vercelDeployment
	if err := decodeJSON("create deployment", res, &deployment); err != nil {
		return nil, err
	}
	if deployment.ID == "" {
		return nil, fmt.Errorf("%w: create deployment: response has no deployment id", ErrNetwork)
	}

	// Vercel reports the host without a scheme.
	siteURL := deployment.URL
	if siteURL != "" && !strings.HasPrefix(siteURL, "http") {
		siteURL = "https://" + siteURL
	}
	return &Site{ID: deployment.ID, URL: siteURL}, nil
}

func (a *VercelAdapter) Upload(ctx context.Context, site *Site, archive []byte) error {
	res, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.config.Token).
		SetHeader("Content-Type", "application/zip").
		SetBody(archive).
		Patch(joinURL(a.config.APIURL, "/v13/deployments/"+url.PathEscape(site.ID)+"/files"))
	return checkResponse("upload files", res, err)
}

func (a *VercelAdapter) Trigger(ctx context.Context, site *Site) error {
	return nil
}
