package docker

// WorkloadType distinguishes Swarm services from standalone containers.
type WorkloadType string

const (
	// WorkloadTypeService marks a Swarm service.
	WorkloadTypeService WorkloadType = "service"
	// WorkloadTypeContainer marks a standalone container.
	WorkloadTypeContainer WorkloadType = "container"
)

func (t WorkloadType) String() string {
	return string(t)
}

// Workload is the mode-agnostic unit of discovery. Each Swarm service or
// standalone container becomes one Workload; the reconciler and the label
// extractors only ever see this shape.
type Workload struct {
	// ID is the service or container ID.
	ID string

	// Name is the service or container name.
	Name string

	// Labels carries every label; source extractors read their hostname
	// declarations from here.
	Labels map[string]string

	// Type records which flavor this workload is.
	Type WorkloadType
}

// String renders "type:name" for logs.
func (w Workload) String() string {
	return w.Type.String() + ":" + w.Name
}

// IsService reports whether this is a Swarm service.
func (w Workload) IsService() bool {
	return w.Type == WorkloadTypeService
}

// IsContainer reports whether this is a standalone container.
func (w Workload) IsContainer() bool {
	return w.Type == WorkloadTypeContainer
}

// HasLabel reports whether the label is present, with any value.
func (w Workload) HasLabel(key string) bool {
	_, ok := w.Labels[key]
	return ok
}

// GetLabel returns the label's value, or "".
func (w Workload) GetLabel(key string) string {
	return w.Labels[key]
}

// GetLabelOr returns the label's value, or defaultValue when absent.
func (w Workload) GetLabelOr(key, defaultValue string) string {
	if v, ok := w.Labels[key]; ok {
		return v
	}
	return defaultValue
}

// Workloads adds set-style helpers over a slice of Workload.
type Workloads []Workload

// IDs flattens to the workload IDs.
func (ws Workloads) IDs() []string {
	ids := make([]string, len(ws))
	for i, w := range ws {
		ids[i] = w.ID
	}
	return ids
}

// Names flattens to the workload names.
func (ws Workloads) Names() []string {
	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.Name
	}
	return names
}

// Filter keeps the workloads for which predicate returns true.
func (ws Workloads) Filter(predicate func(Workload) bool) Workloads {
	result := make(Workloads, 0)
	for _, w := range ws {
		if predicate(w) {
			result = append(result, w)
		}
	}
	return result
}

// WithLabel keeps workloads carrying the label, any value.
func (ws Workloads) WithLabel(key string) Workloads {
	return ws.Filter(func(w Workload) bool { return w.HasLabel(key) })
}

// WithLabelValue keeps workloads whose label equals value.
func (ws Workloads) WithLabelValue(key, value string) Workloads {
	return ws.Filter(func(w Workload) bool { return w.GetLabel(key) == value })
}

// Services keeps only Swarm services.
func (ws Workloads) Services() Workloads {
	return ws.Filter(Workload.IsService)
}

// Containers keeps only standalone containers.
func (ws Workloads) Containers() Workloads {
	return ws.Filter(Workload.IsContainer)
}
