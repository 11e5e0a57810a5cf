package domain

import "testing"

func TestMapOCPPStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want ChargePointStatus
	}{
		{"Available", ChargePointStatusAvailable},
		{"Occupied", ChargePointStatusOccupied},
		{"Charging", ChargePointStatusOccupied},
		{"Preparing", ChargePointStatusOccupied},
		{"Finishing", ChargePointStatusOccupied},
		{"SuspendedEV", ChargePointStatusOccupied},
		{"SuspendedEVSE", ChargePointStatusOccupied},
		{"Faulted", ChargePointStatusFaulted},
		{"Unavailable", ChargePointStatusUnavailable},
		{"Reserved", ChargePointStatusUnavailable},
		{"", ChargePointStatusUnavailable},
		{"SomethingNew", ChargePointStatusUnavailable},
	}
	for _, tc := range cases {
		if got := MapOCPPStatus(tc.raw); got != tc.want {
			t.Errorf("MapOCPPStatus(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestParseAccountRef(t *testing.T) {
	cases := []struct {
		token string
		want  AccountRef
		ok    bool
	}{
		{"U-42", AccountRef{Kind: AccountKindIndividual, ID: 42}, true},
		{"B-7", AccountRef{Kind: AccountKindBusiness, ID: 7}, true},
		{"X-1", AccountRef{}, false},
		{"U-", AccountRef{}, false},
		{"U-abc", AccountRef{}, false},
		{"42", AccountRef{}, false},
		{"", AccountRef{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseAccountRef(tc.token)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseAccountRef(%q) = %+v, %v; want %+v, %v", tc.token, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAccountRefString(t *testing.T) {
	if s := (AccountRef{Kind: AccountKindIndividual, ID: 42}).String(); s != "U-42" {
		t.Errorf("expected U-42, got %s", s)
	}
	if s := (AccountRef{Kind: AccountKindBusiness, ID: 7}).String(); s != "B-7" {
		t.Errorf("expected B-7, got %s", s)
	}
}

func TestSessionTransitions(t *testing.T) {
	s := &ChargingSession{Status: SessionStatusActive}
	if !s.CanPause() || !s.CanStop() || s.CanResume() {
		t.Error("Active: expected pause and stop allowed, resume not")
	}

	s.Status = SessionStatusPaused
	if !s.CanResume() || !s.CanStop() || s.CanPause() {
		t.Error("Paused: expected resume and stop allowed, pause not")
	}

	s.Status = SessionStatusCompleted
	if s.CanPause() || s.CanResume() || s.CanStop() {
		t.Error("Completed: expected no transitions")
	}
	if !s.Status.IsTerminal() {
		t.Error("Completed should be terminal")
	}
	if SessionStatusStarting.IsTerminal() {
		t.Error("Starting should not be terminal")
	}
}
