package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"

	"github.com/example/queueline/internal/config"
	"github.com/example/queueline/internal/db"
	httpserver "github.com/example/queueline/internal/http"
	"github.com/example/queueline/internal/models"
	"github.com/example/queueline/internal/mq"
	"github.com/example/queueline/internal/notify"
	"github.com/example/queueline/internal/queue"
	"github.com/example/queueline/internal/repository"
	"github.com/example/queueline/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// A failed database connection must not take the process down: the
	// default route stays reachable and store-backed routes answer 500.
	var store repository.TicketStore
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: database unavailable (%v), store-backed routes will fail", err)
		store = repository.UnavailableStore{}
	} else {
		autoMigrate(database)
		store = repository.NewTicketRepository(database)
	}

	hub := notify.NewHub()
	notifiers := notify.Multi{hub}

	publisher, err := mq.NewRabbitPublisher(cfg.MQURL, cfg.MQExchange)
	if err != nil {
		log.Printf("warning: rabbitmq unavailable (%v), continuing without broker events", err)
		publisher = nil
	} else {
		notifiers = append(notifiers, notify.PublisherFunc(func(ctx context.Context, event string) {
			if err := publisher.Publish(ctx, event); err != nil {
				log.Printf("publish %s to broker failed: %v", event, err)
			}
		}))
	}

	if len(cfg.WebhookURLs) > 0 {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.WebhookURLs))
	}

	svc := queue.NewService(store, notifiers, cfg.AverageServiceMinutes)
	apiServer := httpserver.NewServer(svc, hub)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var consumer *mq.RabbitConsumer
	if publisher != nil {
		consumer, err = mq.NewRabbitConsumer(cfg.MQURL, cfg.MQExchange, cfg.MQQueue)
		if err != nil {
			log.Printf("warning: broker consumer unavailable (%v)", err)
		} else if err := consumer.Consume(func(amqp091.Delivery) {
			hub.Publish(context.Background(), notify.EventQueueUpdated)
		}); err != nil {
			log.Printf("warning: broker consume failed (%v)", err)
		}
	}

	go worker.NewMonitor(svc, cfg.MonitorInterval).Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: apiServer.Engine,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown initiated")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if consumer != nil {
		_ = consumer.Close()
	}
	if publisher != nil {
		_ = publisher.Close()
	}
	log.Println("bye")
}

func autoMigrate(db *gorm.DB) {
	if err := db.AutoMigrate(&models.Ticket{}, &repository.Counter{}); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
}

func init() {
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
