package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ltreme/biasbench/internal/config"
	"github.com/ltreme/biasbench/internal/errkind"
	"github.com/ltreme/biasbench/internal/gateway"
	"github.com/ltreme/biasbench/internal/pipeline"
)

// resolveGateway builds the LLM gateway a benchmark run will use. "fake"
// returns the deterministic FakeClient (grounded on the original's
// fake_clients.py, for dry runs / environments with no model server); any
// other backend probes candidate base URLs the same way the distilled
// executor did before starting a run, failing fast as gateway_unreachable
// rather than letting the pipeline discover it mid-batch.
func resolveGateway(ctx context.Context, gw config.GatewayConfig, backend, model string) (pipeline.Gateway, error) {
	if backend == "fake" {
		return gateway.NewFakeClient(), nil
	}

	baseURL, err := gateway.DiscoverBaseURL(ctx, http.DefaultClient, gw.BaseURL, "", model)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errkind.GatewayUnreachable, err)
	}
	return gateway.New(gateway.Config{
		BaseURL: baseURL,
		Model:   model,
		APIKey:  gw.APIKey,
	}), nil
}
