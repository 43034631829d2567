package model

import (
	"testing"

	"github.com/google/uuid"

	"deviation-service/internal/workflow"
)

func TestCanSignOff(t *testing.T) {
	cases := []struct {
		name  string
		role  UserRole
		stage workflow.Stage
		allow bool
	}{
		{"rd signs rd", UserRoleRD, workflow.StageRD, true},
		{"rd signs quality", UserRoleRD, workflow.StageQuality, false},
		{"quality signs quality", UserRoleQuality, workflow.StageQuality, true},
		{"production signs production", UserRoleProduction, workflow.StageProduction, true},
		{"gm signs gm", UserRoleGeneralManager, workflow.StageGeneralManager, true},
		{"gm signs rd", UserRoleGeneralManager, workflow.StageRD, false},
		{"requester signs rd", UserRoleRequester, workflow.StageRD, false},
		{"admin signs anything", UserRoleAdmin, workflow.StageProduction, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Principal{UserID: uuid.New(), Role: tc.role}
			if got := p.CanSignOff(tc.stage); got != tc.allow {
				t.Fatalf("CanSignOff(%q, %q) = %v, want %v", tc.role, tc.stage, got, tc.allow)
			}
		})
	}
}

func TestActorDisplayName(t *testing.T) {
	authenticated := Principal{UserID: uuid.New(), FullName: "Ali Demir", Role: UserRoleRequester}
	if got := authenticated.Actor().DisplayName(); got != "Ali Demir" {
		t.Fatalf("DisplayName() = %q, want %q", got, "Ali Demir")
	}

	nameless := Principal{UserID: uuid.New(), Role: UserRoleRequester}
	if got := nameless.Actor().DisplayName(); got != "System" {
		t.Fatalf("DisplayName() = %q, want System", got)
	}

	if got := (Principal{}).Actor().DisplayName(); got != "System" {
		t.Fatalf("zero principal DisplayName() = %q, want System", got)
	}

	if SystemActor().Kind != ActorSystem {
		t.Fatal("SystemActor should have system kind")
	}
}
