package crossfade

import (
	"testing"
	"time"
)

func TestPlanTimeBasedDisabledAtZeroDuration(t *testing.T) {
	s := Settings{Duration: 0}
	if p := PlanTimeBased(10*time.Second, 100*time.Millisecond, s); p != nil {
		t.Errorf("PlanTimeBased: got %+v, want nil when duration is 0", p)
	}
}

func TestPlanTimeBasedTooShortRemaining(t *testing.T) {
	s := Settings{Duration: 5 * time.Second}
	if p := PlanTimeBased(2*time.Second, 100*time.Millisecond, s); p != nil {
		t.Errorf("PlanTimeBased: got %+v, want nil when remaining < duration", p)
	}
}

func TestPlanTimeBasedAscendingRatios(t *testing.T) {
	s := Settings{Duration: 1 * time.Second}
	p := PlanTimeBased(10*time.Second, 100*time.Millisecond, s)
	if p == nil {
		t.Fatalf("PlanTimeBased: got nil, want a plan")
	}
	if p.NumChunks != 10 {
		t.Errorf("NumChunks: got %d, want 10", p.NumChunks)
	}
	for i := 1; i < len(p.Ratios); i++ {
		if p.Ratios[i] <= p.Ratios[i-1] {
			t.Fatalf("Ratios not ascending at index %d: %v", i, p.Ratios)
		}
	}
	if p.Ratios[0] <= 0 || p.Ratios[len(p.Ratios)-1] >= 1 {
		t.Errorf("Ratios out of (0,1) bounds: %v", p.Ratios)
	}
}

func TestPlanMixRampRequiresBothTags(t *testing.T) {
	s := Settings{MixRampDelay: 0}
	if _, ok := PlanMixRamp("", "-6.0 120.5", 100*time.Millisecond, s); ok {
		t.Errorf("PlanMixRamp: expected ok=false with missing prev tag")
	}
}

func TestPlanMixRampDisabledByNegativeDelay(t *testing.T) {
	s := Settings{MixRampDelay: -1}
	_, ok := PlanMixRamp("-6.0 120.5", "-6.0 0.5", 100*time.Millisecond, s)
	if ok {
		t.Errorf("PlanMixRamp: expected ok=false when MixRampDelay is negative")
	}
}

func TestPlanMixRampComputesOverlap(t *testing.T) {
	s := Settings{MixRampDelay: 0}
	// prev ends at 120.5s, next starts at 0.5s within its own song: overlap 120s.
	p, ok := PlanMixRamp("-6.0 120.5", "-6.0 0.5", 100*time.Millisecond, s)
	if !ok {
		t.Fatalf("PlanMixRamp: expected ok=true")
	}
	if !p.MixRamp {
		t.Errorf("Plan.MixRamp: got false, want true")
	}
	ratio, ok := p.ChunkMixRatio(0)
	if !ok || ratio != MixRampRatio {
		t.Errorf("ChunkMixRatio(0): got (%v,%v), want (%v,true)", ratio, ok, MixRampRatio)
	}
}

func TestChunkMixRatioOutOfRange(t *testing.T) {
	var p *Plan
	if _, ok := p.ChunkMixRatio(0); ok {
		t.Errorf("ChunkMixRatio on nil Plan: expected ok=false")
	}
}
