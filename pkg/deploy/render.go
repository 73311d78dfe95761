package deploy

import (
	"context"
	"fmt"
	"net/url"

	"resty.dev/v3"
)

// RenderConfig holds Render credentials
type RenderConfig struct {
	Token     string
	ServiceID string
	APIURL    string
}

// RenderAdapter uploads an artifact for an existing service and then
// triggers a deploy of that service.
type RenderAdapter struct {
	config RenderConfig
	client *resty.Client
}

// NewRenderAdapter creates a Render adapter
func NewRenderAdapter(config RenderConfig, client *resty.Client) *RenderAdapter {
	return &RenderAdapter{config: config, client: client}
}

func (a *RenderAdapter) Target() Target { return TargetRender }

func (a *RenderAdapter) CheckCredentials() error {
	if a.config.Token == "" {
		return missingCredential("RENDER_AUTH_TOKEN")
	}
	if a.config.ServiceID == "" {
		return missingCredential("RENDER_SERVICE_ID")
	}
	return nil
}

type renderArtifact struct {
	UploadURL  string `json:"uploadUrl"`
	ServiceURL string `json:"serviceUrl"`
}

func (a *RenderAdapter) Provision(ctx context.Context) (*Site, error) {
	res, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.config.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"serviceId": a.config.ServiceID}).
		Post(joinURL(a.config.APIURL, "/v1/artifacts"))
	if err := checkResponse("create artifact", res, err); err != nil {
		return nil, err
	}

	var artifact renderArtifact
	if err := decodeJSON("create artifact", res, &artifact); err != nil {
		return nil, err
	}
	if artifact.UploadURL == "" {
		return nil, fmt.Errorf("%w: create artifact: response has no upload url", ErrNetwork)
	}

	return &Site{ID: a.config.ServiceID, URL: artifact.ServiceURL, UploadURL: artifact.UploadURL}, nil
}

// Upload PUTs to the pre-signed URL, which must not receive the API token.
func (a *RenderAdapter) Upload(ctx context.Context, site *Site, archive []byte) error {
	res, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/zip").
		SetBody(archive).
		Put(site.UploadURL)
	return checkResponse("upload artifact", res, err)
}

func (a *RenderAdapter) Trigger(ctx context.Context, site *Site) error {
	res, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.config.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{}).
		Post(joinURL(a.config.APIURL, "/v1/services/"+url.PathEscape(site.ID)+"/deploys"))
	return checkResponse("trigger deploy", res, err)
}
