package engine

import (
	"fmt"

	"github.com/miradorstack/mirador-remediate/internal/models"
)

// minActionConfidence gates all remediating actions; below it the engine
// downgrades to monitor.
const minActionConfidence = 0.6

// Decide applies the safety gates to an analysis, in fixed order; the first
// matching gate wins.
func (e *Engine) Decide(analysis models.Analysis, svcCtx models.ServiceContext) models.Decision {
	action := analysis.Action
	confidence := analysis.Confidence

	// Gate 1: a service restarted twice recently gets scaled instead.
	if action == models.ActionRestartService && svcCtx.RecentRestarts >= 2 {
		return models.Decision{
			Action:         models.ActionScaleUp,
			Reason:         "too many recent restarts",
			Confidence:     confidence * 0.8,
			OriginalAction: action,
		}
	}

	// Gate 2: services younger than an hour are only observed.
	if action == models.ActionRestartService && svcCtx.UptimeHours < 1 {
		return models.Decision{
			Action:         models.ActionMonitor,
			Reason:         "service too new",
			Confidence:     confidence * 0.6,
			OriginalAction: action,
		}
	}

	// Gate 3: low confidence never remediates.
	if confidence < minActionConfidence {
		return models.Decision{
			Action:         models.ActionMonitor,
			Reason:         fmt.Sprintf("confidence too low (%.2f)", confidence),
			Confidence:     confidence,
			OriginalAction: action,
		}
	}

	return models.Decision{
		Action:     action,
		Reason:     analysis.RootCause,
		Confidence: confidence,
		Pattern:    analysis.PatternMatched,
	}
}
