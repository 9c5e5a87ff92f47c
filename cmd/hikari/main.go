package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hikari-bot/datastore"
	"hikari-bot/internal/ai"
	"hikari-bot/internal/config"
	"hikari-bot/internal/discord"
	"hikari-bot/internal/mind"
	"hikari-bot/internal/photo"
	"hikari-bot/internal/storage"
	"hikari-bot/internal/version"
)

func main() {
	env := config.NewEnv()

	settings, err := config.LoadSettings(env.SettingsPath)
	if err != nil {
		log.Fatalf("[ERR] %v", err)
	}

	ds, err := datastore.New(env.StoragePath)
	if err != nil {
		log.Fatalf("[ERR] datastore init failed: %v", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.Printf("[ERR] datastore close failed: %v", err)
		}
	}()

	store := storage.New(ds, env.DataDir)

	// A fresh deployment can start above stranger when configured to.
	if settings.Trust.StartingStage > 0 {
		profile := store.Profile()
		if profile.TrustStage == 0 && profile.MeaningfulExchanges == 0 {
			store.UpdateProfile(func(p *storage.UserProfile) {
				p.TrustStage = settings.Trust.StartingStage
			})
		}
	}

	provider := ai.NewOpenRouterProvider(env.OpenRouterAPIKey, settings)
	engine := mind.NewEngine(store, provider, settings, env.CharacterDir)

	var photos *photo.Generator
	if settings.Photo.Enabled {
		nsfw := ai.NewVeniceProvider(env.VeniceAPIKey, settings.Photo.NSFWModel)
		photos = photo.NewGenerator(settings.Photo, provider, nsfw, env.CharacterDir)
	}

	bot, err := discord.New(env, engine, photos)
	if err != nil {
		log.Fatalf("[ERR] %v", err)
	}
	if err := bot.Start(); err != nil {
		log.Fatalf("[ERR] %v", err)
	}
	log.Printf("[INFO] %s v%s started", version.AppName, version.AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sessionCheckLoop(ctx, engine)
	go heartbeatLoop(ctx, engine, bot)
	go reflectionLoop(ctx, engine, settings)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("[INFO] shutting down")
	cancel()
	if err := bot.Stop(); err != nil {
		log.Printf("[ERR] discord close failed: %v", err)
	}
}

// sessionCheckLoop polls for session timeouts once a minute. The engine
// dedupes by watermark, so an idle period consolidates exactly once.
func sessionCheckLoop(ctx context.Context, engine *mind.Engine) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if engine.OnSessionTimeout(ctx) {
				log.Println("[INFO] memory consolidation completed")
			}
		}
	}
}

// heartbeatLoop wakes at jittered intervals and lets the scheduler decide
// whether to speak. The delay is redrawn every wake-up, sent or not.
func heartbeatLoop(ctx context.Context, engine *mind.Engine, bot *discord.Bot) {
	timer := time.NewTimer(engine.NextDelay())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if engine.OnHeartbeatTick(ctx, bot.SendDM) {
				bot.MaybeSendProactivePhoto()
			}
			timer.Reset(engine.NextDelay())
		}
	}
}

// reflectionLoop runs the daily reflection at the configured local hour.
func reflectionLoop(ctx context.Context, engine *mind.Engine, settings *config.Settings) {
	var lastRun string
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			today := now.Format("2006-01-02")
			if now.Hour() != settings.Memory.ReflectionHour || lastRun == today {
				continue
			}
			lastRun = today
			if engine.OnDailyReflection(ctx) {
				log.Println("[INFO] daily reflection completed")
			}
		}
	}
}
