package docker

import (
	"fmt"
	"sort"
	"time"

	"github.com/docker/docker/api/types/container"
)

// Status describes one environment's container.
type Status struct {
	Exists         bool
	Running        bool
	Name           string
	State          string
	Health         string
	HasHealthcheck bool
	Ports          []string
	StartedAt      time.Time
	Uptime         time.Duration
	Image          string
}

func notCreated(name string) Status {
	return Status{Name: name, State: "not_created", Health: "unknown"}
}

// statusFromInspect reads the fields we report from an inspect response.
// Uptime is left to the caller's clock.
func statusFromInspect(name string, resp container.InspectResponse) Status {
	st := Status{Exists: true, Name: name, State: "unknown", Health: "unknown", Image: "unknown"}
	if resp.Config != nil && resp.Config.Image != "" {
		st.Image = resp.Config.Image
	}

	if resp.ContainerJSONBase != nil && resp.State != nil {
		s := resp.State
		st.State = string(s.Status)
		st.Running = s.Running || s.Status == "running"

		if s.Health != nil && s.Health.Status != "" {
			st.HasHealthcheck = true
			st.Health = string(s.Health.Status)
		} else if st.Running {
			st.Health = "healthy"
		}

		if st.Running && s.StartedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, s.StartedAt); err == nil {
				st.StartedAt = t
			}
		}
	}

	if resp.NetworkSettings != nil {
		for port, bindings := range resp.NetworkSettings.Ports {
			if len(bindings) == 0 {
				st.Ports = append(st.Ports, string(port))
				continue
			}
			for _, b := range bindings {
				host := b.HostIP
				if host == "" {
					host = "0.0.0.0"
				}
				st.Ports = append(st.Ports, fmt.Sprintf("%s:%s->%s", host, b.HostPort, port))
			}
		}
	}
	sort.Strings(st.Ports)
	return st
}
