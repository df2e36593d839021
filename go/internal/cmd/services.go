package main

import (
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/clients/school_api_client"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/api"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/bus"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/gateway"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/live"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/roster"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/selfpaced"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/session"
)

type Services struct {
	Bus       bus.Bus
	Sessions  *session.Service
	Live      *live.Controller
	SelfPaced *selfpaced.Service
	Roster    *roster.Service

	API               *api.Handler
	ConnectionManager *gateway.ConnectionManager
	EventConsumer     *gateway.EventConsumer
	WebSocket         *gateway.WebSocketHandler
	State             *gateway.StateHandler
}

func setupServices(config *Config, database *sql.DB) (*Services, error) {
	clock := clockwork.NewRealClock()

	// Bus: in-process for a single binary, JetStream when NATS is
	// configured so multiple instances see the same events.
	var eventBus bus.Bus
	if config.NATS.URL != "" {
		jsConfig := bus.DefaultJetStreamConfig()
		jsConfig.URL = config.NATS.URL
		jsBus, err := bus.NewJetStreamBus(jsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect JetStream bus: %w", err)
		}
		eventBus = jsBus
	} else {
		eventBus = bus.NewInProcBus()
	}

	// Roster reconciliation is optional; without a school directory every
	// class-linked join records an outsider with reason roster_not_synced.
	var rosterService *roster.Service
	if config.SchoolDirectory.BaseURL != "" {
		directory := school_api_client.NewSchoolApiClient(config.SchoolDirectory.BaseURL, config.SchoolDirectory.APIKey)
		rosterService = roster.NewService(roster.NewRepository(database), directory, clock)
	}

	sessionRepo := session.NewRepository(database)
	var matcher session.RosterMatcher
	if rosterService != nil {
		matcher = rosterService
	}
	sessionService := session.NewService(sessionRepo, eventBus, matcher, clock)

	liveController := live.NewController(sessionService, eventBus, clock)
	selfPacedService := selfpaced.NewService(selfpaced.NewRepository(database), sessionService, clock)

	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	eventConsumer := gateway.NewEventConsumer(connectionManager, eventBus)
	webSocketHandler := gateway.NewWebSocketHandler(connectionManager, sessionService)
	stateProvider := gateway.NewSessionStateProvider(sessionService, clock)
	stateHandler := gateway.NewStateHandler(stateProvider, sessionService)

	apiHandler := api.NewHandler(sessionService, liveController, selfPacedService, rosterService, config.Server.HostKey)

	return &Services{
		Bus:               eventBus,
		Sessions:          sessionService,
		Live:              liveController,
		SelfPaced:         selfPacedService,
		Roster:            rosterService,
		API:               apiHandler,
		ConnectionManager: connectionManager,
		EventConsumer:     eventConsumer,
		WebSocket:         webSocketHandler,
		State:             stateHandler,
	}, nil
}
