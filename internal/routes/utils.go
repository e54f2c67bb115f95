package routes

import (
	"context"
	"log"
	"time"

	"github.com/vedreal/airdrop_backend/internal/repositories"
)

// CampaignStatsLoop периодически пишет сводку кампании в лог.
func CampaignStatsLoop(store repositories.UserStore) {
	log.Println("✅ Campaign stats job started")
	logCampaignStats(store)

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		logCampaignStats(store)
	}
}

func logCampaignStats(store repositories.UserStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := store.CountStats(ctx)
	if err != nil {
		log.Printf("❌ Не удалось получить статистику кампании: %v", err)
		return
	}
	log.Printf("📊 Участников: %d, eligible: %d, очков роздано: %.0f, TON: %.3f",
		stats.TotalUsers, stats.EligibleUsers, stats.TotalPoints, stats.TotalTon)
}
