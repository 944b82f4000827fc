package main

import (
	"context"

	"github.com/yndnr/meshbus-go/internal/messenger"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
)

// exampleHandlers log the three message types every node understands.
// Records carry node_id and msg_type from the dispatch context.
func exampleHandlers() map[string]messenger.HandlerFunc {
	return map[string]messenger.HandlerFunc{
		"player_message": func(ctx context.Context, env *messenger.Envelope) error {
			player, _ := env.DataString("player")
			logger.L(ctx).Info("cross-server chat", "player", player, "content", env.Content, "sender", env.Sender)
			return nil
		},
		"server_event": func(ctx context.Context, env *messenger.Envelope) error {
			event, _ := env.DataString("event")
			server, _ := env.DataString("server")
			logger.L(ctx).Info("server event", "server", server, "event", event, "sender", env.Sender)
			return nil
		},
		"sync_data": func(ctx context.Context, env *messenger.Envelope) error {
			dataType, _ := env.DataString("type")
			logger.L(ctx).Info("synchronizing data", "type", dataType, "sender", env.Sender)
			return nil
		},
	}
}

func registerExampleHandlers(m *messenger.Messenger) {
	for msgType, h := range exampleHandlers() {
		m.RegisterHandler(msgType, h)
	}
}
