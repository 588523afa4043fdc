package discovery

import (
	"github.com/miradorstack/mirador-remediate/internal/config"
	"github.com/miradorstack/mirador-remediate/internal/models"
)

// StaticServices maps configured demo services into the registry model.
func StaticServices(demo []config.DemoService) []models.Service {
	services := make([]models.Service, 0, len(demo))
	for _, d := range demo {
		endpoint := d.HealthEndpoint
		if endpoint == "" {
			endpoint = "/health"
		}
		svcType := d.Type
		if svcType == "" {
			svcType = "http"
		}
		services = append(services, models.Service{
			ID:             d.ID,
			Name:           d.Name,
			Type:           svcType,
			Port:           d.Port,
			HealthEndpoint: endpoint,
			Status:         models.StatusUnknown,
			Metadata:       models.ServiceMetadata{UptimeHours: d.UptimeHours},
		})
	}
	return services
}
