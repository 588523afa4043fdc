// Package discovery finds monitored services. The primary source is the local
// Docker daemon, selecting containers by label; statically configured demo
// services cover environments without a daemon.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

const defaultServicePort = 8080

// DockerDiscoverer lists containers labeled for monitoring.
type DockerDiscoverer struct {
	cli         *client.Client
	labelPrefix string
	logger      *slog.Logger
}

// NewDockerDiscoverer connects to the Docker daemon from the environment.
func NewDockerDiscoverer(labelPrefix string, logger *slog.Logger) (*DockerDiscoverer, error) {
	if labelPrefix == "" {
		labelPrefix = "autosre"
	}
	if logger == nil {
		logger = slog.Default()
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerDiscoverer{cli: cli, labelPrefix: labelPrefix, logger: logger}, nil
}

// Client exposes the daemon connection for the action executor.
func (d *DockerDiscoverer) Client() *client.Client {
	return d.cli
}

// Discover returns a Service for every running container labeled
// <prefix>.monitor=true, mapping the <prefix>.service.* labels onto the
// service fields.
func (d *DockerDiscoverer) Discover(ctx context.Context) ([]models.Service, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	services := make([]models.Service, 0, len(containers))
	for _, c := range containers {
		if !strings.EqualFold(c.Labels[d.labelPrefix+".monitor"], "true") {
			continue
		}

		id := c.ID
		if len(id) > 12 {
			id = id[:12]
		}

		name := c.Labels[d.labelPrefix+".service.name"]
		if name == "" && len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		port := defaultServicePort
		if v := c.Labels[d.labelPrefix+".service.port"]; v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				port = parsed
			} else {
				d.logger.Warn("invalid service port label",
					slog.String("container", id), slog.String("port", v))
			}
		}

		svcType := c.Labels[d.labelPrefix+".service.type"]
		if svcType == "" {
			svcType = "http"
		}

		endpoint := c.Labels[d.labelPrefix+".health.endpoint"]
		if endpoint == "" {
			endpoint = "/health"
		}

		services = append(services, models.Service{
			ID:             id,
			Name:           name,
			Type:           svcType,
			Port:           port,
			HealthEndpoint: endpoint,
			Status:         models.StatusUnknown,
			Metadata: models.ServiceMetadata{
				ContainerID: c.ID,
				Image:       c.Image,
				UptimeHours: time.Since(time.Unix(c.Created, 0)).Hours(),
			},
		})
	}
	return services, nil
}
