package model

import "github.com/google/uuid"

type ActorKind string

const (
	ActorAuthenticated ActorKind = "AUTHENTICATED"
	ActorSystem        ActorKind = "SYSTEM"
)

// Actor identifies who performs a mutation. The system actor covers
// unattended writes (migrations, integrations) so audit fields are never
// silently empty.
type Actor struct {
	Kind   ActorKind
	UserID uuid.UUID
	Name   string
}

const systemActorName = "System"

func SystemActor() Actor {
	return Actor{Kind: ActorSystem, Name: systemActorName}
}

func (a Actor) DisplayName() string {
	if a.Kind != ActorAuthenticated || a.Name == "" {
		return systemActorName
	}
	return a.Name
}
