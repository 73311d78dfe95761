package deploy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibely/vibely/pkg/license"
	"github.com/vibely/vibely/pkg/session"
)

type testConfig struct {
	netlify NetlifyConfig
	vercel  VercelConfig
	render  RenderConfig
	breaker BreakerConfig
	gate    LicenseGate
	key     string
}

func newTestDispatcher(t *testing.T, provider *fakeProvider, mutate func(*testConfig)) (*Dispatcher, *session.Store) {
	t.Helper()

	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)

	cfg := testConfig{
		netlify: NetlifyConfig{Token: "nfp_test", APIURL: provider.server.URL},
		vercel:  VercelConfig{Token: "vercel_test", APIURL: provider.server.URL},
		render:  RenderConfig{Token: "rnd_test", ServiceID: "srv-123", APIURL: provider.server.URL},
		breaker: BreakerConfig{Failures: 5, OpenTimeout: time.Minute},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	client := NewHTTPClient(5 * time.Second)
	t.Cleanup(func() { _ = client.Close() })

	d, err := NewDispatcher(DispatcherOptions{
		Sessions: store,
		Adapters: []Adapter{
			NewNetlifyAdapter(cfg.netlify, client),
			NewVercelAdapter(cfg.vercel, client),
			NewRenderAdapter(cfg.render, client),
		},
		Breaker:    cfg.breaker,
		License:    cfg.gate,
		LicenseKey: cfg.key,
	})
	require.NoError(t, err)
	return d, store
}

func seedSession(t *testing.T, store *session.Store, id string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, store.WriteFile(context.Background(), id, name, []byte(content)))
	}
}

func TestParseTarget(t *testing.T) {
	for _, name := range []string{"netlify", "Vercel", " RENDER "} {
		_, err := ParseTarget(name)
		assert.NoError(t, err, name)
	}

	_, err := ParseTarget("heroku")
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestNewDispatcher_RequiresAllTargets(t *testing.T) {
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = NewDispatcher(DispatcherOptions{
		Sessions: store,
		Adapters: []Adapter{NewNetlifyAdapter(NetlifyConfig{}, NewHTTPClient(time.Second))},
	})
	assert.ErrorIs(t, err, ErrDispatcher)

	_, err = NewDispatcher(DispatcherOptions{})
	assert.ErrorIs(t, err, ErrDispatcher)
}

func TestDeploy_Netlify(t *testing.T) {
	provider := newFakeProvider(t)
	d, store := newTestDispatcher(t, provider, nil)
	files := map[string]string{"index.html": "<h1>hi</h1>", "css/app.css": "body{}"}
	seedSession(t, store, "site", files)

	result := d.Deploy(context.Background(), "netlify", "site")

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "https://site-1.netlify.app", result.URL)
	assert.Equal(t, TargetNetlify, result.Target)
	assert.Equal(t, PhaseDone, result.Phase)
	assert.Equal(t, files, unzipBytes(t, provider.upload("site-1")))

	reqs := provider.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/api/v1/sites", reqs[0].Path)
	assert.Equal(t, "Bearer nfp_test", reqs[0].Auth)
	assert.Equal(t, "/api/v1/sites/site-1/deploys", reqs[1].Path)
	assert.Equal(t, "application/zip", reqs[1].ContentType)
	assert.Equal(t, "Bearer nfp_test", reqs[1].Auth)
}

func TestDeploy_Vercel(t *testing.T) {
	provider := newFakeProvider(t)
	d, store := newTestDispatcher(t, provider, nil)
	seedSession(t, store, "app", map[string]string{"index.html": "v"})

	result := d.Deploy(context.Background(), "vercel", "app")

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "https://dpl-1.vercel.app", result.URL)

	reqs := provider.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, "PATCH", reqs[1].Method)
	assert.Equal(t, "/v13/deployments/dpl-1/files", reqs[1].Path)
	assert.Equal(t, "application/zip", reqs[1].ContentType)
}

func TestDeploy_Render(t *testing.T) {
	provider := newFakeProvider(t)
	d, store := newTestDispatcher(t, provider, nil)
	seedSession(t, store, "api", map[string]string{"server.js": "listen()"})

	result := d.Deploy(context.Background(), "render", "api")

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "https://svc.onrender.com", result.URL)
	assert.Equal(t, map[string]string{"server.js": "listen()"}, unzipBytes(t, provider.upload("art-1")))

	reqs := provider.recorded()
	require.Len(t, reqs, 3)
	assert.Equal(t, "/v1/artifacts", reqs[0].Path)
	assert.Equal(t, "PUT", reqs[1].Method)
	assert.Empty(t, reqs[1].Auth, "pre-signed upload must not carry the API token")
	assert.Equal(t, "/v1/services/srv-123/deploys", reqs[2].Path)
	assert.Equal(t, "Bearer rnd_test", reqs[2].Auth)
}

func TestDeploy_RenderMissingToken(t *testing.T) {
	provider := newFakeProvider(t)
	d, store := newTestDispatcher(t, provider, func(c *testConfig) { c.render.Token = "" })
	seedSession(t, store, "api", map[string]string{"a.txt": "a"})

	result := d.Deploy(context.Background(), "render", "api")

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "missing credential")
	assert.Contains(t, result.Message, "RENDER_AUTH_TOKEN")
	assert.Zero(t, provider.requestCount())
}

func TestDeploy_RenderMissingServiceID(t *testing.T) {
	provider := newFakeProvider(t)
	d, store := newTestDispatcher(t, provider, func(c *testConfig) { c.render.ServiceID = "" })
	seedSession(t, store, "api", map[string]string{"a.txt": "a"})

	result := d.Deploy(context.Background(), "render", "api")

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "RENDER_SERVICE_ID")
	assert.Zero(t, provider.requestCount())
}

func TestDeploy_MissingTokenOnlyAffectsThatTarget(t *testing.T) {
	provider := newFakeProvider(t)
	d, store := newTestDispatcher(t, provider, func(c *testConfig) { c.netlify.Token = "" })
	seedSession(t, store, "site", map[string]string{"a.txt": "a"})

	assert.False(t, d.Deploy(context.Background(), "netlify", "site").Success)
	assert.True(t, d.Deploy(context.Background(), "vercel", "site").Success)
}

func TestDeploy_UnknownTarget(t *testing.T) {
	provider := newFakeProvider(t)
	d, _ := newTestDispatcher(t, provider, nil)

	var result Result
	assert.NotPanics(t, func() {
		result = d.Deploy(context.Background(), "bogus-target", "site")
	})

	assert.False(t, result.Success)
	assert.Contains(t, strings.ToLower(result.Message), "unknown target")
	assert.Zero(t, provider.requestCount())
}

func TestDeploy_InvalidSession(t *testing.T) {
	provider := newFakeProvider(t)
	d, _ := newTestDispatcher(t, provider, nil)

	result := d.Deploy(context.Background(), "netlify", "../etc")

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "invalid session")
	assert.Zero(t, provider.requestCount())
}

func TestDeploy_EmptySessionFailsWhileUploading(t *testing.T) {
	provider := newFakeProvider(t)
	d, _ := newTestDispatcher(t, provider, nil)

	result := d.Deploy(context.Background(), "netlify", "empty")

	assert.False(t, result.Success)
	assert.Equal(t, PhaseUploading, result.Phase)
	assert.Contains(t, result.Message, "empty")
}

func TestDeploy_ProvisionFailure(t *testing.T) {
	provider := newFakeProvider(t)
	provider.failWith("POST /api/v1/sites", 500)
	d, store := newTestDispatcher(t, provider, nil)
	seedSession(t, store, "site", map[string]string{"a.txt": "a"})

	result := d.Deploy(context.Background(), "netlify", "site")

	assert.False(t, result.Success)
	assert.Equal(t, PhaseProvisioning, result.Phase)
	assert.Contains(t, result.Message, "status 500")
	assert.Equal(t, 1, provider.requestCount(), "no upload after a failed provision")
}

func TestDeploy_TriggerFailureIsNotPartialSuccess(t *testing.T) {
	provider := newFakeProvider(t)
	provider.failWith("POST /v1/services/srv-123/deploys", 502)
	d, store := newTestDispatcher(t, provider, nil)
	seedSession(t, store, "api", map[string]string{"a.txt": "a"})

	result := d.Deploy(context.Background(), "render", "api")

	assert.False(t, result.Success)
	assert.Equal(t, PhaseTriggering, result.Phase)
	assert.Empty(t, result.URL)
	assert.NotEmpty(t, provider.upload("art-1"), "upload happened before the trigger failed")
}

func TestDeploy_ConcurrentSessionsIsolated(t *testing.T) {
	provider := newFakeProvider(t)
	d, store := newTestDispatcher(t, provider, nil)

	const n = 6
	for i := 0; i < n; i++ {
		seedSession(t, store, fmt.Sprintf("s%d", i), map[string]string{
			"owner.txt":              fmt.Sprintf("s%d", i),
			fmt.Sprintf("%d.txt", i): "only here",
		})
	}

	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Deploy(context.Background(), "netlify", fmt.Sprintf("s%d", i))
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		require.True(t, result.Success, result.Message)
		siteID := strings.TrimSuffix(strings.TrimPrefix(result.URL, "https://"), ".netlify.app")
		contents := unzipBytes(t, provider.upload(siteID))
		assert.Equal(t, map[string]string{
			"owner.txt":              fmt.Sprintf("s%d", i),
			fmt.Sprintf("%d.txt", i): "only here",
		}, contents)
	}
}

func TestDeploy_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	provider := newFakeProvider(t)
	provider.failWith("POST /v13/deployments", 503)
	d, store := newTestDispatcher(t, provider, func(c *testConfig) {
		c.breaker = BreakerConfig{Failures: 2, OpenTimeout: time.Minute}
	})
	seedSession(t, store, "app", map[string]string{"a.txt": "a"})

	for i := 0; i < 2; i++ {
		assert.False(t, d.Deploy(context.Background(), "vercel", "app").Success)
	}
	assert.Equal(t, gobreaker.StateOpen, d.BreakerState(TargetVercel))

	before := provider.requestCount()
	result := d.Deploy(context.Background(), "vercel", "app")

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "failing repeatedly")
	assert.Equal(t, before, provider.requestCount())

	assert.Equal(t, gobreaker.StateClosed, d.BreakerState(TargetNetlify))
}

func TestDeploy_SuccessResetsBreakerFailures(t *testing.T) {
	provider := newFakeProvider(t)
	d, store := newTestDispatcher(t, provider, func(c *testConfig) {
		c.breaker = BreakerConfig{Failures: 2, OpenTimeout: time.Minute}
	})
	seedSession(t, store, "app", map[string]string{"a.txt": "a"})
	ctx := context.Background()

	provider.failWith("POST /v13/deployments", 503)
	assert.False(t, d.Deploy(ctx, "vercel", "app").Success)

	provider.clearFailure("POST /v13/deployments")
	assert.True(t, d.Deploy(ctx, "vercel", "app").Success)

	provider.failWith("POST /v13/deployments", 503)
	assert.False(t, d.Deploy(ctx, "vercel", "app").Success)

	assert.Equal(t, gobreaker.StateClosed, d.BreakerState(TargetVercel))
}

func TestDeploy_HalfOpenSuccessClosesBreaker(t *testing.T) {
	provider := newFakeProvider(t)
	d, store := newTestDispatcher(t, provider, func(c *testConfig) {
		c.breaker = BreakerConfig{Failures: 1, OpenTimeout: 50 * time.Millisecond}
	})
	seedSession(t, store, "app", map[string]string{"a.txt": "a"})
	ctx := context.Background()

	provider.failWith("POST /v13/deployments", 503)
	assert.False(t, d.Deploy(ctx, "vercel", "app").Success)
	require.Equal(t, gobreaker.StateOpen, d.BreakerState(TargetVercel))

	provider.clearFailure("POST /v13/deployments")
	require.Eventually(t, func() bool {
		return d.BreakerState(TargetVercel) == gobreaker.StateHalfOpen
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, d.Deploy(ctx, "vercel", "app").Success)
	assert.Equal(t, gobreaker.StateClosed, d.BreakerState(TargetVercel))
}

func TestDeploy_CredentialFailuresDoNotTripBreaker(t *testing.T) {
	provider := newFakeProvider(t)
	d, _ := newTestDispatcher(t, provider, func(c *testConfig) {
		c.render.Token = ""
		c.breaker = BreakerConfig{Failures: 1, OpenTimeout: time.Minute}
	})

	for i := 0; i < 3; i++ {
		d.Deploy(context.Background(), "render", "api")
	}
	assert.Equal(t, gobreaker.StateClosed, d.BreakerState(TargetRender))
}

type stubGate struct {
	verdict license.Verdict
	calls   int
}

func (g *stubGate) Verify(ctx context.Context, key string) license.Verdict {
	g.calls++
	return g.verdict
}

func TestDeploy_LicenseGate(t *testing.T) {
	provider := newFakeProvider(t)
	gate := &stubGate{verdict: license.Verdict{Reason: license.ReasonExpired, Message: "Expired on 2024-01-01"}}
	d, store := newTestDispatcher(t, provider, func(c *testConfig) {
		c.gate = gate
		c.key = "KEY"
	})
	seedSession(t, store, "site", map[string]string{"a.txt": "a"})

	result := d.Deploy(context.Background(), "netlify", "site")

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "license denied")
	assert.Equal(t, 1, gate.calls)
	assert.Zero(t, provider.requestCount())

	gate.verdict = license.Verdict{Valid: true, Reason: license.ReasonActive}
	assert.True(t, d.Deploy(context.Background(), "netlify", "site").Success)
}

func TestDeploy_Canceled(t *testing.T) {
	provider := newFakeProvider(t)
	d, store := newTestDispatcher(t, provider, nil)
	seedSession(t, store, "site", map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := d.Deploy(ctx, "netlify", "site")
	assert.False(t, result.Success)
	assert.Equal(t, gobreaker.StateClosed, d.BreakerState(TargetNetlify))
}
