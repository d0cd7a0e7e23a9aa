package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/imzii/Online-Chess-PPT/internal/chat"
	appcfg "github.com/imzii/Online-Chess-PPT/internal/config"
	"github.com/imzii/Online-Chess-PPT/internal/game"
	"github.com/imzii/Online-Chess-PPT/internal/httpapi"
	"github.com/imzii/Online-Chess-PPT/internal/longpoll"
	"github.com/imzii/Online-Chess-PPT/internal/matchmaking"
	"github.com/imzii/Online-Chess-PPT/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	games, err := game.NewManager(cfg.RedisURL)
	if err != nil {
		log.Fatalf("game manager init error: %v", err)
	}

	var repo *game.Repository
	if cfg.DatabaseURL != "" {
		repo, err = game.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("repository init error: %v", err)
		}
		games.AttachRepository(repo)
	} else {
		obslog.L().Warn("database_disabled", zap.String("reason", "DATABASE_URL empty"))
	}

	queue := matchmaking.NewQueue()
	matchHub := longpoll.NewHub[matchmaking.MatchNotice]()
	relay := chat.NewRelay(games, cfg.PollTimeout)

	start := func(ctx context.Context, first, second matchmaking.Player) (string, error) {
		sess, err := games.Create(ctx,
			game.Participant{ID: first.ID, Name: first.Name, Elo: first.Elo},
			game.Participant{ID: second.ID, Name: second.Name, Elo: second.Elo},
			first.ID)
		if err != nil {
			return "", err
		}
		return sess.ID, nil
	}
	matcher := matchmaking.NewMatcher(queue, matchHub, start,
		cfg.MatchInterval, cfg.MaxEloDiff, cfg.EloTightenAfter)

	ctx, cancel := context.WithCancel(context.Background())
	go matcher.Run(ctx)

	server := httpapi.New(queue, matchHub, games, relay, cfg.PollTimeout)
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe(cfg.ListenAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		obslog.L().Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		obslog.L().Error("server_failed", zap.Error(err))
	}

	cancel()
	_ = server.Shutdown()
	_ = games.Close()
	if repo != nil {
		_ = repo.Close()
	}
}
