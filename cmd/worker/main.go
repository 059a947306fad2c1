package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/config"
	"rollcall/internal/dispatch"
	"rollcall/internal/ledger"
	"rollcall/internal/metrics"
	"rollcall/internal/notify"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
	"rollcall/internal/store"
)

// Worker delivers queued student mail and runs the report dispatcher. It is
// the only process that talks to SMTP, so a slow relay never blocks a
// verification request.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	cal, _, err := config.Schedule(cfg.ScheduleFile)
	if err != nil {
		log.Fatalf("schedule invalid: %v", err)
	}

	var registry roster.Store
	var sheetStore ledger.Store
	if cfg.StoreBackend == "postgres" {
		db, err := store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer db.Close()
		registry = roster.NewPostgres(db.Client)
		sheetStore = ledger.NewPostgres(db.Client)
	} else {
		// Memory stores do not share state with the api process; the worker
		// only makes sense against postgres and redis.
		log.Println("warning: memory store backend, day sheets are invisible to this process")
		registry = roster.NewMemory()
		sheetStore = ledger.NewMemory()
	}
	sheets := ledger.NewService(sheetStore, registry)

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	var flags dispatch.FlagStore
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
		flags = dispatch.NewMemoryFlags()
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "rollcall:mail")
		flags = dispatch.NewRedisFlags(redisClient.Client)
	}

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.MailBackend == "smtp" {
		mailer = notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	dispatcher := dispatch.New(cal, sheets, flags, mailer, cfg.ReportsDir, cfg.DispatchInterval)
	go dispatcher.Run(ctx)

	jobs, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for jobs...")
	for job := range jobs {
		if job.Kind != notify.JobKindMail {
			continue
		}
		var msg notify.Message
		if err := json.Unmarshal(job.Payload, &msg); err != nil {
			log.Printf("drop undecodable mail job: %v", err)
			continue
		}
		if err := mailer.Send(ctx, msg); err != nil {
			// Student mail is fire-and-forget: log and move on.
			metrics.MailTotal.WithLabelValues("error").Inc()
			log.Printf("mail to %s failed: %v", msg.To, err)
			continue
		}
		metrics.MailTotal.WithLabelValues("ok").Inc()
		log.Printf("mail sent to %s: %s", msg.To, msg.Subject)
	}

	log.Println("worker stopped")
}
