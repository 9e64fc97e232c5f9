package d21engine

import (
	"log/slog"
	"time"

	httpadapter "d21vote/contexts/elections/d21-engine/adapters/http"
	"d21vote/contexts/elections/d21-engine/adapters/memory"
	"d21vote/contexts/elections/d21-engine/application/commands"
	"d21vote/contexts/elections/d21-engine/application/queries"
	"d21vote/contexts/elections/d21-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Elections      ports.ElectionRepository
	Keys           ports.ElectionKeyer
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	electionUseCase := commands.ElectionUseCase{
		Elections:      deps.Elections,
		Keys:           deps.Keys,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	electionQueries := queries.ElectionQueries{
		Elections: deps.Elections,
	}
	return Module{
		Handler: httpadapter.Handler{
			Elections: electionUseCase,
			Queries:   electionQueries,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one memory store. Tests pin time
// through Store.SetNow.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Elections:      store,
		Keys:           store,
		Idempotency:    store,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
