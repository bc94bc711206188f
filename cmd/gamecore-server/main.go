// Command gamecore-server wires the engine framework, both concrete
// games, Redis-backed persistence, the room registry, and the
// reference turn-timeout scheduler into one process. It hosts no
// network edge itself — that is deliberately out of scope — and is
// meant to be embedded or fronted by the caller's own transport.
package main

import (
	"log"
	"time"

	"gamecore/broadcast"
	"gamecore/config"
	"gamecore/engine"
	"gamecore/gamerand"
	"gamecore/luckymine"
	"gamecore/ludo"
	"gamecore/outbox"
	"gamecore/registry"
	"gamecore/room"
	"gamecore/roomservice"
	"gamecore/roomstore"
	"gamecore/scheduler"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	reg := registry.New(client)
	ledger := outbox.NewRedisOutbox(client, "")
	bcast := broadcast.NewChannelBroadcaster(64)

	ludoRepo := roomstore.NewRepository[ludo.State](client, ludoCodec, "ludo", reg, ludo.Logic{}.DefaultMeta, cfg.CacheSize)
	ludoFramework := engine.NewFramework[ludo.State](ludo.Logic{}, ludoRepo, logger)
	ludoFramework.Broadcaster = bcast
	ludoFramework.LockTTL = cfg.LockTTL
	ludoFramework.WaitTimeout = cfg.LockWaitTimeout

	mineRepo := roomstore.NewRepository[luckymine.State](client, mineCodec, "luckymine", reg, luckymine.Logic{}.DefaultMeta, cfg.CacheSize)
	mineFramework := engine.NewFramework[luckymine.State](luckymine.Logic{}, mineRepo, logger)
	mineFramework.Broadcaster = bcast
	mineFramework.Outbox = ledger
	mineFramework.LockTTL = cfg.LockTTL
	mineFramework.WaitTimeout = cfg.LockWaitTimeout

	mineMultiRepo := roomstore.NewRepository[luckymine.MultiState](client, mineMultiCodec, "luckymine-multi", reg, luckymine.MultiLogic{}.DefaultMeta, cfg.CacheSize)
	mineMultiFramework := engine.NewFramework[luckymine.MultiState](luckymine.MultiLogic{}, mineMultiRepo, logger)
	mineMultiFramework.Broadcaster = bcast
	mineMultiFramework.Outbox = ledger
	mineMultiFramework.LockTTL = cfg.LockTTL
	mineMultiFramework.WaitTimeout = cfg.LockWaitTimeout

	engines := map[string]engine.Engine{
		"ludo":            ludoFramework,
		"luckymine":       mineFramework,
		"luckymine-multi": mineMultiFramework,
	}

	rnd := gamerand.CryptoSource{}
	ludoRooms := roomservice.NewService[ludo.State]("ludo", ludoRepo, reg, func(meta *room.Meta) ludo.State {
		st := ludo.NewState(meta.MaxPlayers, time.Now().Unix())
		st.TurnTimeoutSeconds = uint16(cfg.TurnTimeoutSeconds)
		return st
	})
	mineRooms := roomservice.NewService[luckymine.State]("luckymine", mineRepo, reg, func(meta *room.Meta) luckymine.State {
		return luckymine.NewRoomState(rnd, meta.Config, meta.EntryFee)
	})
	mineMultiRooms := roomservice.NewService[luckymine.MultiState]("luckymine-multi", mineMultiRepo, reg, func(meta *room.Meta) luckymine.MultiState {
		return luckymine.NewMultiRoomState(rnd, meta.MaxPlayers, meta.Config, meta.EntryFee)
	})

	ticker := scheduler.NewTicker(engines["ludo"], reg, "ludo", logger)
	if err := ticker.Start("@every 5s"); err != nil {
		logger.Fatal("start scheduler", zap.Error(err))
	}
	defer ticker.Stop()

	logger.Info("gamecore core wired",
		zap.Strings("gameTypes", []string{"ludo", "luckymine", "luckymine-multi"}),
		zap.String("redisAddr", cfg.RedisAddr),
	)

	// engines and the room services are what an embedding edge
	// (HTTP/WS, out of scope for this core) dispatches into; nothing
	// below drives traffic on its own.
	_ = engines
	_, _, _ = ludoRooms, mineRooms, mineMultiRooms

	select {}
}
