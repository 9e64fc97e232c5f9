package ids

import (
	"context"

	"github.com/google/uuid"
)

// electionNamespace scopes the name-based election ids to this service.
var electionNamespace = uuid.MustParse("7d1c8a52-6c0e-4c55-9a7e-2f7d8f9d2a21")

// ElectionID derives the election id from the (authority, name) key. The NUL
// separator keeps ("ab","c") and ("a","bc") apart.
func ElectionID(authority string, name string) string {
	return uuid.NewSHA1(electionNamespace, []byte(authority+"\x00"+name)).String()
}

// Keyer adapts ElectionID to ports.ElectionKeyer.
type Keyer struct{}

func (Keyer) ElectionID(authority string, name string) string {
	return ElectionID(authority, name)
}

// Generator issues random ids for events and outbox rows.
type Generator struct{}

func (Generator) NewID(_ context.Context) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
