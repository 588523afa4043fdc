package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

// restartStopSeconds bounds how long a container gets to stop gracefully.
const restartStopSeconds = 10

// DockerExecutor performs remediation actions against the Docker daemon.
// Services without a backing container get simulated acknowledgements, which
// keeps the verification path exercised in demo deployments.
type DockerExecutor struct {
	cli    *client.Client
	logger *slog.Logger
}

// NewDockerExecutor wraps an existing daemon connection; cli may be nil in
// demo mode.
func NewDockerExecutor(cli *client.Client, logger *slog.Logger) *DockerExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerExecutor{cli: cli, logger: logger}
}

// Execute performs the action and reports the immediate result. Verification
// of the outcome is the coordinator's job, not the executor's.
func (e *DockerExecutor) Execute(ctx context.Context, action models.ActionType, svc models.Service) (models.ActionResult, error) {
	switch action {
	case models.ActionRestartService:
		return e.restart(ctx, svc)
	case models.ActionScaleUp:
		// No orchestration backend is attached; acknowledge so the incident
		// lifecycle can proceed to verification.
		e.logger.Info("scale up acknowledged", slog.String("service", svc.Name))
		return models.ActionResult{Success: true, Detail: "scale up acknowledged"}, nil
	case models.ActionRetryAndThrottle:
		e.logger.Info("retry-and-throttle acknowledged", slog.String("service", svc.Name))
		return models.ActionResult{Success: true, Detail: "retry and throttle acknowledged"}, nil
	case models.ActionInvestigate:
		return models.ActionResult{Success: true, Detail: "flagged for investigation"}, nil
	default:
		return models.ActionResult{}, fmt.Errorf("unsupported action %q", action)
	}
}

func (e *DockerExecutor) restart(ctx context.Context, svc models.Service) (models.ActionResult, error) {
	if e.cli == nil || svc.Metadata.ContainerID == "" {
		e.logger.Info("restart simulated, no container attached", slog.String("service", svc.Name))
		return models.ActionResult{Success: true, Detail: "restart simulated"}, nil
	}

	timeout := restartStopSeconds
	if err := e.cli.ContainerRestart(ctx, svc.Metadata.ContainerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return models.ActionResult{Success: false, Detail: err.Error()},
			fmt.Errorf("restart container for %s: %w", svc.Name, err)
	}

	e.logger.Info("container restarted", slog.String("service", svc.Name))
	return models.ActionResult{Success: true, Detail: "container restarted"}, nil
}
