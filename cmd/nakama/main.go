package main

import (
	"context"
	"database/sql"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/ports/nakama"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule proxies Nakama initialization to the nakama adapter package.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	return nakama.InitModule(ctx, logger, db, nk, initializer)
}

// main is never invoked: the package is built with -buildmode=plugin and
// loaded by Nakama via InitModule. It exists so `go build ./...` links.
func main() {}
