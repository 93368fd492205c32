package nakama

import (
	"context"
	"database/sql"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/app"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/config"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires the room coordinator, its RPCs and session hooks into Nakama.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	cfg, err := config.FromMap(env)
	if err != nil {
		logger.Error("InitModule: invalid configuration: %v", err)
		return err
	}

	gateway := NewStreamGateway(nk)
	coordinator := app.NewCoordinator(
		domain.NewStore(),
		gateway,
		logger,
		app.WithSettings(cfg.CoordinatorSettings()),
		app.WithMetrics(NewNakamaMetricsAdapter(nk, logger)),
	)

	module := NewModule(coordinator, gateway, cfg.VoiceService(), NewNakamaAccountAdapter(nk))
	if err := module.RegisterRPCs(initializer); err != nil {
		return err
	}
	if err := module.RegisterHooks(initializer); err != nil {
		return err
	}

	// The runtime has no shutdown hook; the janitor lives as long as the process.
	go coordinator.RunJanitor(context.Background(), cfg.PurgeInterval, cfg.RoomMaxAge)

	logger.Info("RPS-15 module loaded (countdown %d x %s, voice %t).",
		cfg.CountdownFrom, cfg.CountdownInterval, cfg.VoiceService().Enabled())
	return nil
}
