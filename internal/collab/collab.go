package collab

import "engagement-crm/internal/config"

// Clients — набор внешних сервисов, с которыми работает движок.
type Clients struct {
	ESign        ESign
	Payments     Payments
	Email        Email
	Store        *FileStore
	PartnerEmail string
}

func New(cfg *config.Config) *Clients {
	return &Clients{
		ESign:        NewESign(cfg.ESignURL, cfg.ESignAPIKey),
		Payments:     NewPayments(cfg.PaymentsURL, cfg.PaymentsKey),
		Email:        NewEmail(cfg.EmailURL, cfg.EmailAPIKey),
		Store:        NewFileStore(cfg.StorageDir, cfg.ArchiveDir),
		PartnerEmail: cfg.PartnerEmail,
	}
}
