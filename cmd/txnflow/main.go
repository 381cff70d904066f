package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/rkoehler/txnflow/app/repository"
	"github.com/rkoehler/txnflow/internal/pkg/cache"
	"github.com/rkoehler/txnflow/internal/pkg/database"
	"github.com/rkoehler/txnflow/internal/pkg/env"
	"github.com/rkoehler/txnflow/internal/pkg/ingest"
	"github.com/rkoehler/txnflow/internal/pkg/jobqueue"
	"github.com/rkoehler/txnflow/internal/pkg/router"
	"github.com/rkoehler/txnflow/internal/pkg/settlement"
)

func main() {
	app, manager := NewApplication()

	manager.Start()
	defer manager.Stop()

	// Shut down cleanly on SIGINT/SIGTERM so in-flight jobs get requeued.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "8000"))
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}

// NewApplication assembles the service: every collaborator is constructed here
// and handed down explicitly.
func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()

	db, err := database.SetupDatabase()
	if err != nil {
		log.Fatalf("database setup failed: %v", err)
	}

	repos := repository.NewRepositories(db)
	redisClient := cache.NewClient()

	queue := jobqueue.NewQueue(redisClient, repos.Transaction, settlement.NewClient(), jobqueue.ConfigFromEnv())
	manager := jobqueue.NewManager(queue, repos.Transaction, jobqueue.ManagerConfigFromEnv())

	svc := ingest.NewService(repos.Transaction, ingest.NewQueueDispatcher(queue))

	app := fiber.New(fiber.Config{
		AppName: "txnflow",
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, repos, svc, queue, repository.NewQueueRepository(redisClient))

	return app, manager
}
