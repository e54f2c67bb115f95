package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/vedreal/airdrop_backend/config"
	"github.com/vedreal/airdrop_backend/db"
	"github.com/vedreal/airdrop_backend/internal/repositories"
	"github.com/vedreal/airdrop_backend/internal/routes"
)

func main() {
	cfg := config.NewConfig()

	database := db.InitDB(cfg.DatabaseDSN)
	defer database.Close()

	if cfg.AppEnv != "production" {
		db.SeedDemoUsers(database)
	}

	redisClient := config.NewRedisClient()
	defer redisClient.Close()

	router := routes.Setup(cfg, database, redisClient)

	go routes.CampaignStatsLoop(repositories.NewUserRepository(database))

	serverAddress := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("🚀 Server starting on %s", serverAddress)
	log.Fatal(http.ListenAndServe(serverAddress, router))
}
