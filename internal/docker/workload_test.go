package docker

import (
	"testing"
)

func labWorkloads() Workloads {
	return Workloads{
		{
			ID:   "svc-1",
			Name: "grafana",
			Type: WorkloadTypeService,
			Labels: map[string]string{
				"traefik.enable": "true",
				"team":           "observability",
			},
		},
		{
			ID:   "ctr-1",
			Name: "prometheus",
			Type: WorkloadTypeContainer,
			Labels: map[string]string{
				"traefik.enable": "false",
			},
		},
		{
			ID:   "ctr-2",
			Name: "alertmanager",
			Type: WorkloadTypeContainer,
		},
	}
}

func TestWorkloadString(t *testing.T) {
	tests := []struct {
		workload Workload
		want     string
	}{
		{Workload{Name: "grafana", Type: WorkloadTypeService}, "service:grafana"},
		{Workload{Name: "prometheus", Type: WorkloadTypeContainer}, "container:prometheus"},
	}
	for _, tt := range tests {
		if got := tt.workload.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestWorkloadTypePredicates(t *testing.T) {
	svc := Workload{Type: WorkloadTypeService}
	ctr := Workload{Type: WorkloadTypeContainer}

	if !svc.IsService() || svc.IsContainer() {
		t.Error("service predicates wrong")
	}
	if !ctr.IsContainer() || ctr.IsService() {
		t.Error("container predicates wrong")
	}
}

func TestWorkloadLabelAccess(t *testing.T) {
	w := Workload{Labels: map[string]string{"traefik.enable": "true", "empty": ""}}

	if !w.HasLabel("traefik.enable") || !w.HasLabel("empty") || w.HasLabel("missing") {
		t.Error("HasLabel wrong")
	}
	if w.GetLabel("traefik.enable") != "true" || w.GetLabel("missing") != "" {
		t.Error("GetLabel wrong")
	}
	if w.GetLabelOr("missing", "fallback") != "fallback" {
		t.Error("GetLabelOr fallback wrong")
	}
	if w.GetLabelOr("empty", "fallback") != "" {
		t.Error("GetLabelOr must honor present-but-empty values")
	}
}

func TestWorkloadNilLabels(t *testing.T) {
	var w Workload
	if w.HasLabel("anything") {
		t.Error("HasLabel on nil map")
	}
	if w.GetLabel("anything") != "" {
		t.Error("GetLabel on nil map")
	}
	if w.GetLabelOr("anything", "d") != "d" {
		t.Error("GetLabelOr on nil map")
	}
}

func TestWorkloadsFlattening(t *testing.T) {
	ws := labWorkloads()

	ids := ws.IDs()
	if len(ids) != 3 || ids[0] != "svc-1" || ids[2] != "ctr-2" {
		t.Errorf("IDs = %v", ids)
	}
	names := ws.Names()
	if len(names) != 3 || names[1] != "prometheus" {
		t.Errorf("Names = %v", names)
	}

	var empty Workloads
	if len(empty.IDs()) != 0 || len(empty.Names()) != 0 {
		t.Error("empty slice flattening")
	}
}

func TestWorkloadsFilters(t *testing.T) {
	ws := labWorkloads()

	enabled := ws.WithLabelValue("traefik.enable", "true")
	if len(enabled) != 1 || enabled[0].Name != "grafana" {
		t.Errorf("WithLabelValue = %v", enabled.Names())
	}

	labeled := ws.WithLabel("traefik.enable")
	if len(labeled) != 2 {
		t.Errorf("WithLabel = %v", labeled.Names())
	}

	services := ws.Services()
	if len(services) != 1 || services[0].Type != WorkloadTypeService {
		t.Errorf("Services = %v", services.Names())
	}
	containers := ws.Containers()
	if len(containers) != 2 {
		t.Errorf("Containers = %v", containers.Names())
	}

	longNames := ws.Filter(func(w Workload) bool { return len(w.Name) > 9 }) // prometheus, alertmanager
	if len(longNames) != 2 {
		t.Errorf("Filter = %v", longNames.Names())
	}
}
