package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN         string
	ServerPort    string
	SessionSecret string

	// внешние сервисы; пустой URL означает dev-режим (заглушка)
	ESignURL      string
	ESignAPIKey   string
	PaymentsURL   string
	PaymentsKey   string
	EmailURL      string
	EmailAPIKey   string
	PartnerEmail  string
	StorageDir    string
	ArchiveDir    string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBDSN:         os.Getenv("DB_DSN"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		SessionSecret: os.Getenv("SESSION_SECRET"),

		ESignURL:     os.Getenv("ESIGN_URL"),
		ESignAPIKey:  os.Getenv("ESIGN_API_KEY"),
		PaymentsURL:  os.Getenv("PAYMENTS_URL"),
		PaymentsKey:  os.Getenv("PAYMENTS_API_KEY"),
		EmailURL:     os.Getenv("EMAIL_URL"),
		EmailAPIKey:  os.Getenv("EMAIL_API_KEY"),
		PartnerEmail: os.Getenv("PARTNER_EMAIL"),
		StorageDir:   os.Getenv("STORAGE_DIR"),
		ArchiveDir:   os.Getenv("ARCHIVE_DIR"),
	}

	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN is not set")
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET is not set")
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "./data/engagements"
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = "./data/archive"
	}

	return cfg
}
