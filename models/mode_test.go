package models

import (
	"errors"
	"testing"
)

func TestMostSevere_PicksLowerPrecedence(t *testing.T) {
	for _, a := range AllModes() {
		for _, b := range AllModes() {
			got := MostSevere(a, b)
			want := a
			if b.Precedence() < a.Precedence() {
				want = b
			}
			if got != want {
				t.Errorf("MostSevere(%s, %s) = %s, want %s", a, b, got, want)
			}
		}
	}
}

func TestMostSevere_Commutative(t *testing.T) {
	for _, a := range AllModes() {
		for _, b := range AllModes() {
			if MostSevere(a, b) != MostSevere(b, a) {
				t.Errorf("MostSevere not commutative for %s, %s", a, b)
			}
		}
	}
}

func TestMostSevere_Associative(t *testing.T) {
	for _, a := range AllModes() {
		for _, b := range AllModes() {
			for _, c := range AllModes() {
				left := MostSevere(MostSevere(a, b), c)
				right := MostSevere(a, MostSevere(b, c))
				if left != right {
					t.Errorf("MostSevere not associative for %s, %s, %s", a, b, c)
				}
			}
		}
	}
}

func TestMostSevereOf(t *testing.T) {
	tests := []struct {
		name  string
		modes []Mode
		want  Mode
	}{
		{"empty", nil, ModeNormal},
		{"maintenance", []Mode{ModeMaintenance}, ModeMaintenance},
		{"killed wins", []Mode{ModeMaintenance, ModeKilled, ModeStopped}, ModeKilled},
		{"stopped over normal", []Mode{ModeNormal, ModeStopped}, ModeStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MostSevereOf(tt.modes...); got != tt.want {
				t.Errorf("MostSevereOf(%v) = %s, want %s", tt.modes, got, tt.want)
			}
		})
	}
}

func TestPrecedence_IgnoresDeclarationOrder(t *testing.T) {
	if ModeNormal.Precedence() != 10 {
		t.Errorf("expected normal rank 10, got %d", ModeNormal.Precedence())
	}
	if Mode("bogus").Precedence() <= ModeNormal.Precedence() {
		t.Error("unknown modes must rank after normal")
	}
	if MostSevere(Mode("bogus"), ModeNormal) != ModeNormal {
		t.Error("unknown mode must never win")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	for _, m := range AllModes() {
		parsed, err := ParseMode(m.Token())
		if err != nil {
			t.Fatalf("ParseMode(%q) failed: %v", m.Token(), err)
		}
		if parsed != m || parsed.Token() != m.Token() {
			t.Errorf("round trip of %s produced %s", m, parsed)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("  Maintenance\n"); err != nil || m != ModeMaintenance {
		t.Errorf("expected maintenance, got %q (%v)", m, err)
	}

	_, err := ParseMode("paused")
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestActivityAndDeactivated(t *testing.T) {
	for _, m := range AllModes() {
		if m.Activity() == "" {
			t.Errorf("mode %s has no activity label", m)
		}
	}
	if !ModeKilled.Deactivated() || !ModeStopped.Deactivated() {
		t.Error("killed and stopped must be deactivated")
	}
	if ModeMaintenance.Deactivated() || ModeNormal.Deactivated() {
		t.Error("maintenance and normal must not be deactivated")
	}
}

func TestClusterNodeState(t *testing.T) {
	var missing *ClusterNode
	if missing.State() != NodeStateUnregistered {
		t.Errorf("nil row should be unregistered, got %s", missing.State())
	}

	n := &ClusterNode{Name: "a"}
	if n.State() != NodeStateStandby {
		t.Errorf("expected standby, got %s", n.State())
	}
	n.Active = true
	if n.State() != NodeStateActive {
		t.Errorf("expected active, got %s", n.State())
	}
	n.Transferring = true
	if n.State() != NodeStateTransferring {
		t.Errorf("expected transferring, got %s", n.State())
	}
}
