package docker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
)

// clientInMode builds a Client with the mode pinned, skipping daemon
// detection, for testing the mode-guarded paths.
func clientInMode(mode Mode) *Client {
	return &Client{detectedMode: mode, logger: slog.Default()}
}

func TestNormalizeContainerName(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{"leading slash stripped", []string{"/grafana"}, "grafana"},
		{"first alias wins", []string{"/grafana", "/grafana-alias"}, "grafana"},
		{"no slash kept", []string{"grafana"}, "grafana"},
		{"empty list", nil, ""},
		{"empty name", []string{""}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeContainerName(tt.names); got != tt.want {
				t.Errorf("normalizeContainerName(%v) = %q, want %q", tt.names, got, tt.want)
			}
		})
	}
}

func TestOptionsApply(t *testing.T) {
	c := &Client{mode: ModeAuto, logger: slog.Default()}

	WithHost("tcp://docker.lab.internal:2376")(c)
	WithMode(ModeSwarm)(c)
	WithCleanupOnStop(false)(c)

	if c.host != "tcp://docker.lab.internal:2376" || c.mode != ModeSwarm || c.cleanupOnStop {
		t.Errorf("options not applied: %+v", c)
	}

	custom := slog.New(slog.NewTextHandler(os.Stderr, nil))
	WithLogger(custom)(c)
	if c.logger != custom {
		t.Error("WithLogger not applied")
	}
	WithLogger(nil)(c)
	if c.logger != custom {
		t.Error("nil logger replaced the existing one")
	}
}

func TestModeGuards(t *testing.T) {
	ctx := context.Background()

	standalone := clientInMode(ModeStandalone)
	if _, err := standalone.ListServices(ctx); !errors.Is(err, ErrNotSwarmMode) {
		t.Errorf("ListServices in standalone = %v", err)
	}
	if _, err := standalone.GetServiceLabels(ctx, "svc1"); !errors.Is(err, ErrNotSwarmMode) {
		t.Errorf("GetServiceLabels in standalone = %v", err)
	}

	swarmClient := clientInMode(ModeSwarm)
	if _, err := swarmClient.ListContainers(ctx); !errors.Is(err, ErrNotStandaloneMode) {
		t.Errorf("ListContainers in swarm = %v", err)
	}
	if _, err := swarmClient.GetContainerLabels(ctx, "ctr1"); !errors.Is(err, ErrNotStandaloneMode) {
		t.Errorf("GetContainerLabels in swarm = %v", err)
	}
}

func TestModeAccessors(t *testing.T) {
	if got := clientInMode(ModeSwarm); got.Mode() != ModeSwarm || !got.IsSwarm() {
		t.Errorf("swarm client: mode=%v isSwarm=%v", got.Mode(), got.IsSwarm())
	}
	if got := clientInMode(ModeStandalone); got.Mode() != ModeStandalone || got.IsSwarm() {
		t.Errorf("standalone client: mode=%v isSwarm=%v", got.Mode(), got.IsSwarm())
	}
	if ModeAuto.String() != "auto" || ModeSwarm.String() != "swarm" || ModeStandalone.String() != "standalone" {
		t.Error("mode string values drifted")
	}
}

func TestCloseWithoutConnection(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close on unconnected client: %v", err)
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	errs := []error{ErrNotSwarmMode, ErrNotStandaloneMode, ErrNotManager, ErrSwarmNotActive}
	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors %d and %d alias each other", i, j)
			}
		}
	}
}
