package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/miradorstack/mirador-remediate/internal/models"
	"github.com/miradorstack/mirador-remediate/internal/utils"
)

func TestRegisterAndListPreservesOrder(t *testing.T) {
	reg := New()
	reg.Register(models.Service{ID: "b", Name: "beta"})
	reg.Register(models.Service{ID: "a", Name: "alpha"})
	reg.Register(models.Service{ID: "b", Name: "beta-updated"})

	services := reg.List()
	if len(services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(services))
	}
	if services[0].ID != "b" || services[1].ID != "a" {
		t.Fatalf("registration order lost: %v", services)
	}
	if services[0].Name != "beta-updated" {
		t.Fatalf("re-register did not replace: %q", services[0].Name)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	reg := New()
	reg.Register(models.Service{ID: "svc-1", Status: models.StatusUnknown})

	svc, err := reg.Get("svc-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	svc.Status = models.StatusUnhealthy

	again, _ := reg.Get("svc-1")
	if again.Status != models.StatusUnknown {
		t.Fatalf("caller mutation leaked into registry: %q", again.Status)
	}

	if _, err := reg.Get("missing"); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	reg := New()
	reg.Register(models.Service{ID: "svc-1"})

	checkedAt := time.Now().UTC()
	if err := reg.UpdateStatus("svc-1", models.StatusHealthy, checkedAt); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	svc, _ := reg.Get("svc-1")
	if svc.Status != models.StatusHealthy {
		t.Fatalf("status not updated: %q", svc.Status)
	}
	if svc.LastCheck == nil || !svc.LastCheck.Equal(checkedAt) {
		t.Fatalf("lastCheck not recorded: %v", svc.LastCheck)
	}

	if err := reg.UpdateStatus("missing", models.StatusHealthy, checkedAt); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestContextReflectsRestartCount(t *testing.T) {
	reg := New()
	reg.Register(models.Service{ID: "svc-1", Metadata: models.ServiceMetadata{UptimeHours: 5}})

	for i := 0; i < 2; i++ {
		if err := reg.IncrementRestartCount("svc-1"); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}

	svcCtx, err := reg.Context("svc-1")
	if err != nil {
		t.Fatalf("context failed: %v", err)
	}
	if svcCtx.RecentRestarts != 2 {
		t.Fatalf("restarts = %d, want 2", svcCtx.RecentRestarts)
	}
	if svcCtx.UptimeHours != 5 {
		t.Fatalf("uptime = %f, want 5", svcCtx.UptimeHours)
	}
}
