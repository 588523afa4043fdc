package engine

import (
	"sort"
	"time"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

// Hotspot aggregates incident history for one service.
type Hotspot struct {
	ServiceID   string    `json:"serviceId"`
	ServiceName string    `json:"serviceName"`
	Incidents   int       `json:"incidents"`
	Prevalence  float64   `json:"prevalence"`
	Types       []string  `json:"types"`
	LastSeen    time.Time `json:"lastSeen"`
}

// MineHotspots folds incident history into per-service frequency hotspots,
// ordered by prevalence. It is a read-only aggregation for operator surfaces.
func MineHotspots(incidents []models.Incident) []Hotspot {
	if len(incidents) == 0 {
		return nil
	}

	type aggregate struct {
		name       string
		count      int
		typeCounts map[models.IncidentType]int
		lastSeen   time.Time
	}

	stats := make(map[string]*aggregate)
	for _, inc := range incidents {
		agg, ok := stats[inc.ServiceID]
		if !ok {
			agg = &aggregate{name: inc.ServiceName, typeCounts: make(map[models.IncidentType]int)}
			stats[inc.ServiceID] = agg
		}
		agg.count++
		agg.typeCounts[inc.Type]++
		if inc.DetectedAt.After(agg.lastSeen) {
			agg.lastSeen = inc.DetectedAt
		}
	}

	hotspots := make([]Hotspot, 0, len(stats))
	for serviceID, agg := range stats {
		types := make([]string, 0, len(agg.typeCounts))
		for t := range agg.typeCounts {
			types = append(types, string(t))
		}
		sort.Slice(types, func(i, j int) bool {
			ci, cj := agg.typeCounts[models.IncidentType(types[i])], agg.typeCounts[models.IncidentType(types[j])]
			if ci != cj {
				return ci > cj
			}
			return types[i] < types[j]
		})

		hotspots = append(hotspots, Hotspot{
			ServiceID:   serviceID,
			ServiceName: agg.name,
			Incidents:   agg.count,
			Prevalence:  float64(agg.count) / float64(len(incidents)),
			Types:       types,
			LastSeen:    agg.lastSeen,
		})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Prevalence != hotspots[j].Prevalence {
			return hotspots[i].Prevalence > hotspots[j].Prevalence
		}
		return hotspots[i].ServiceID < hotspots[j].ServiceID
	})
	return hotspots
}
