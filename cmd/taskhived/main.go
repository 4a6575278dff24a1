package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhive/internal/ai"
	"taskhive/internal/bot"
	"taskhive/internal/config"
	"taskhive/internal/events"
	"taskhive/internal/functions"
	"taskhive/internal/notify"
	"taskhive/internal/realtime"
	"taskhive/internal/repository"
	"taskhive/internal/service"
	"taskhive/internal/session"
	"taskhive/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireSecret(); err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	hub := realtime.NewHub()
	defer hub.Close()
	bus := events.NewBus()
	defer bus.Close()

	taskRepo := repository.NewTaskRepository(db, hub)
	habitRepo := repository.NewHabitRepository(db, hub)
	completionRepo := repository.NewCompletionRepository(db, hub)
	memberRepo := repository.NewMemberRepository(db, hub)
	notificationRepo := repository.NewNotificationRepository(db, hub)
	reminderRepo := repository.NewReminderRepository(db, hub)
	profileRepo := repository.NewProfileRepository(db)

	tokens := session.NewTokenProvider(cfg.JWTSecret)
	digestSvc := service.NewDigestService(taskRepo, habitRepo, completionRepo)
	gateway := ai.NewGateway(cfg.AIGatewayURL, cfg.AIGatewayKey, cfg.AIModel)

	var pushers notify.Fanout
	if cfg.FirebaseCredentials != "" {
		fcm, err := notify.NewFCMPusher(ctx, cfg.FirebaseCredentials, profileRepo)
		if err != nil {
			log.Fatalf("fcm: %v", err)
		}
		pushers = append(pushers, fcm)
	}

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		// the bot calls the functions server like any other client
		botToken, err := tokens.Issue(session.Identity{UserID: "telegram-bot", Name: "Telegram bot"}, 365*24*time.Hour)
		if err != nil {
			log.Fatalf("bot token: %v", err)
		}
		telegramBot, err = bot.New(cfg.TelegramToken, bot.Deps{
			Profiles: profileRepo,
			Tokens:   tokens,
			Workspaces: func(ids store.Identity) *store.Workspace {
				return store.NewWorkspace(store.RepositoryBackends(db, hub), hub, bus, ids, notify.Local{})
			},
			Digest:    digestSvc,
			Suggester: ai.NewClient(cfg.FunctionsURL, botToken),
		}, cfg.Location)
		if err != nil {
			log.Fatalf("bot: %v", err)
		}
		pushers = append(pushers, telegramBot)
	} else {
		log.Println("[warn] TELEGRAM_TOKEN is empty, bot disabled")
	}

	var mailer notify.Mailer
	if cfg.ResendAPIKey != "" {
		mailer = notify.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom)
	}

	notificationSvc := service.NewNotificationService(notificationRepo, pushers)
	reminderSvc := service.NewReminderService(reminderRepo, taskRepo, profileRepo, notificationSvc, mailer)
	service.NewDispatcher(notificationSvc, memberRepo, reminderSvc, profileRepo, notify.Local{}).Register(bus)

	scheduler := service.NewSchedulerService(cfg.Location)
	if _, err := scheduler.ScheduleInterval("reminder sweep", cfg.SweepInterval, func(ctx context.Context) error {
		_, err := reminderSvc.Sweep(ctx, time.Now())
		return err
	}); err != nil {
		log.Fatalf("schedule sweep: %v", err)
	}
	if telegramBot != nil {
		if _, err := scheduler.ScheduleDaily("daily digest", cfg.DigestTime, telegramBot.SendDailyDigests); err != nil {
			log.Fatalf("schedule digest: %v", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := functions.NewServer(cfg.FunctionsAddr, gateway, reminderSvc, tokens)
	go func() {
		if err := server.Run(ctx); err != nil {
			log.Printf("functions server: %v", err)
			stop()
		}
	}()

	log.Println("TaskHive daemon started.")
	if telegramBot != nil {
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("bot stopped with error: %v", err)
		}
	} else {
		<-ctx.Done()
	}
	log.Println("Shutdown complete.")
}
