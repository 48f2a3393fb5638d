package main

import (
	"fmt"
	"log"
	"time"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/config"
	"engagement-crm/internal/database"
	"engagement-crm/internal/server"
	"engagement-crm/internal/workflow"
)

func main() {
	cfg := config.Load()
	database.Init(cfg.DBDSN)

	clients := collab.New(cfg)
	r := server.NewRouter(cfg, clients)

	// фоновая проверка только читает: просроченные счета и подошедшие
	// фоллоу-апы попадают в лог, записи делаются по явным командам партнёра
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if overdue, err := workflow.OverdueInvoices(database.DB); err != nil {
				log.Printf("overdue sweep failed: %v", err)
			} else if len(overdue) > 0 {
				log.Printf("%d invoices past due, awaiting partner action", len(overdue))
			}

			if due, err := workflow.DueFollowUps(database.DB); err != nil {
				log.Printf("follow-up sweep failed: %v", err)
			} else if len(due) > 0 {
				log.Printf("%d follow-ups due for partner action", len(due))
			}
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("starting server on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
