package observability

import "time"

// HealthStatus is the rolled-up state of a component or service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// worse reports whether s ranks below o (down < degraded < up).
func (s HealthStatus) worse(o HealthStatus) bool {
	return s.rank() < o.rank()
}

func (s HealthStatus) rank() int {
	switch s {
	case HealthStatusUp:
		return 2
	case HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

// Health is one component's report, e.g. the CRM backend connection or the
// snapshot store.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth aggregates component reports. Its status is the worst
// component status.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	CheckedAt  time.Time    `json:"checkedAt"`
	Components []Health     `json:"components,omitempty"`
}

func NewServiceHealth(service string) *ServiceHealth {
	return &ServiceHealth{
		Service:   service,
		Status:    HealthStatusUp,
		CheckedAt: time.Now().UTC(),
	}
}

// AddComponent appends ch and lowers the overall status when ch is worse.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)
	if ch.Status.worse(sh.Status) {
		sh.Status = ch.Status
	}
}

// Component returns the report named name.
func (sh *ServiceHealth) Component(name string) (Health, bool) {
	for _, c := range sh.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Health{}, false
}

// Healthy is true only when every component is up.
func (sh *ServiceHealth) Healthy() bool {
	return sh.Status == HealthStatusUp
}
