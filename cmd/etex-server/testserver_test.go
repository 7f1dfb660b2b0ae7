package main

import (
	"context"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/compose"
)

// envTestServerURL points the tests at an already running server.
const envTestServerURL = "ETEX_TEST_SERVER_URL"

// newTestServer returns the base URL of a running etex server.
// Unless envTestServerURL is set, it starts the compose project with the
// placeholder builder and tears it down when the test ends.
func newTestServer(t *testing.T, ctx context.Context) (baseURL string) {
	t.Helper()

	if baseURL = os.Getenv(envTestServerURL); baseURL != "" {
		return baseURL
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	project, err := compose.NewDockerCompose("../../compose.yaml")
	if err != nil {
		t.Fatalf("didn't want %q", err)
	}
	t.Cleanup(func() {
		err := project.Down(context.WithoutCancel(ctx), compose.RemoveImagesLocal, compose.RemoveOrphans(true), compose.RemoveVolumes(true))
		if err != nil {
			t.Errorf("didn't want %q", err)
		}
	})

	if err = project.Up(ctx, compose.Wait(true)); err != nil {
		t.Fatalf("didn't want %q", err)
	}

	serverContainer, err := project.ServiceContainer(ctx, "server")
	if err != nil {
		t.Fatalf("didn't want %q", err)
	}
	baseURL, err = serverContainer.PortEndpoint(ctx, "8000/tcp", "http")
	if err != nil {
		t.Fatalf("didn't want %q", err)
	}
	return baseURL
}
