package bootstrap

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunServicesValidation(t *testing.T) {
	ctx := context.Background()
	require.Error(t, RunServices(ctx, nil))
	require.Error(t, RunServices(ctx, &ServiceOrchestrationConfig{}))
	require.Error(t, RunServices(ctx, &ServiceOrchestrationConfig{Config: testAppConfig()}))

	cfg := testAppConfig()
	cfg.Services = "scheduler"
	components, err := BuildAuth(ctx, AuthDeps{Config: testAppConfig(), Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(components.Close)

	err = RunServices(ctx, &ServiceOrchestrationConfig{Config: cfg, Auth: components})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "determine enabled services")
}

func TestRunServicesServesHTTPUntilCancelled(t *testing.T) {
	cfg := testAppConfig()
	components, err := BuildAuth(context.Background(), AuthDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(components.Close)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunServices(ctx, &ServiceOrchestrationConfig{
			Config:   cfg,
			Auth:     components,
			Logger:   discardLogger(),
			Listener: ln,
		})
	}()

	client := &http.Client{Timeout: time.Second}
	assert.Eventually(t, func() bool {
		resp, getErr := client.Get(base + "/readyz")
		if getErr != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	req, err := http.NewRequest(http.MethodGet, base+"/auth/state", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["authenticated"])
	assert.Equal(t, false, body["loading"])

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("services did not stop after cancellation")
	}
}

func TestRunServicesReportsListenerFailure(t *testing.T) {
	cfg := testAppConfig()
	cfg.Services = "http"
	components, err := BuildAuth(context.Background(), AuthDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(components.Close)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	err = RunServices(context.Background(), &ServiceOrchestrationConfig{
		Config:   cfg,
		Auth:     components,
		Logger:   discardLogger(),
		Listener: ln,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server failed")
}
