package metrics_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	// Packages
	metrics "github.com/mutablelogic/go-pgbus/pkg/metrics"
	prometheus "github.com/prometheus/client_golang/prometheus"
	assert "github.com/stretchr/testify/assert"
)

func Test_Server_001(t *testing.T) {
	assert := assert.New(t)
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	if !assert.NoError(err) {
		t.FailNow()
	}

	server := metrics.NewServer("127.0.0.1:19191", reg)
	assert.Equal("127.0.0.1:19191", server.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx, time.Second)
	}()

	// Wait for the server to accept connections
	var resp *http.Response
	assert.Eventually(func() bool {
		resp, err = http.Get("http://127.0.0.1:19191/health")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	if resp != nil {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.NoError(err)
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Equal("ok", string(body))
	}

	resp, err = http.Get("http://127.0.0.1:19191/metrics")
	if assert.NoError(err) {
		resp.Body.Close()
		assert.Equal(http.StatusOK, resp.StatusCode)
	}

	cancel()
	assert.NoError(<-done)
}
