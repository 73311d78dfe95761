package deploy

import (
	"context"
	"fmt"
	"net/url"

	"resty.dev/v3"
)

// NetlifyConfig holds Netlify credentials
type NetlifyConfig struct {
	Token  string
	APIURL string
}

// NetlifyAdapter creates a new site per deploy and uploads the zip to it.
// Uploading the zip starts the deploy.
type NetlifyAdapter struct {
	config NetlifyConfig
	client *resty.Client
}

// NewNetlifyAdapter creates a Netlify adapter
func NewNetlifyAdapter(config NetlifyConfig, client *resty.Client) *NetlifyAdapter {
	return &NetlifyAdapter{config: config, client: client}
}

func (a *NetlifyAdapter) Target() Target { return TargetNetlify }

func (a *NetlifyAdapter) CheckCredentials() error {
	if a.config.Token == "" {
		return missingCredential("NETLIFY_AUTH_TOKEN")
	}
	return nil
}

type netlifySite struct {
	ID     string `json:"id"`
	SiteID string `json:"site_id"`
	SSLURL string `json:"ssl_url"`
	URL    string `json:"url"`
}

func (a *NetlifyAdapter) Provision(ctx context.Context) (*Site, error) {
	res, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.config.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{}).
		Post(joinURL(a.config.APIURL, "/api/v1/sites"))
	if err := checkResponse("create site", res, err); err != nil {
		return nil, err
	}

	var site netlifySite
	if err := decodeJSON("create site", res, &site); err != nil {
		return nil, err
	}

	id := site.SiteID
	if id == "" {
		id = site.ID
	}
	if id == "" {
		return nil, fmt.Errorf("%w: create site: response has no site id", ErrNetwork)
	}

	siteURL := site.SSLURL
	if siteURL == "" {
		siteURL = site.URL
	}
	return &Site{ID: id, URL: siteURL}, nil
}

func (a *NetlifyAdapter) Upload(ctx context.Context, site *Site, archive []byte) error {
	res, err := a.client.R().
		SetContext(ctx).
		SetAuthToken(a.config.Token).
		SetHeader("Content-Type", "application/zip").
		SetBody(archive).
		Post(joinURL(a.config.APIURL, "/api/v1/sites/"+url.PathEscape(site.ID)+"/deploys"))
	return checkResponse("upload deploy", res, err)
}

func (a *NetlifyAdapter) Trigger(ctx context.Context, site *Site) error {
	return nil
}
