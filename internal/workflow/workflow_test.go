package workflow

import (
	"testing"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/database"
	"engagement-crm/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// одна in-memory база — одно соединение
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestClients(t *testing.T) *collab.Clients {
	t.Helper()
	return &collab.Clients{
		ESign:        collab.NewESign("", ""),
		Payments:     collab.NewPayments("", ""),
		Email:        collab.NewEmail("", ""),
		Store:        collab.NewFileStore(t.TempDir(), t.TempDir()),
		PartnerEmail: "partner@example.com",
	}
}

func seedClient(t *testing.T, db *gorm.DB) *models.Client {
	t.Helper()
	client := &models.Client{
		CompanyName:         "Acme Manufacturing",
		PrimaryContactName:  "Jane Smith",
		PrimaryContactEmail: "jane@acme.example",
		Industry:            "manufacturing",
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

func seedEngagement(t *testing.T, db *gorm.DB, status models.EngagementStatus, phase int) *models.Engagement {
	t.Helper()
	client := seedClient(t, db)
	eng := &models.Engagement{
		ClientID:         client.ID,
		Client:           *client,
		Status:           status,
		Phase:            phase,
		Fee:              12500,
		PartnerLead:      "George DeVries",
		UploadToken:      uuid.NewString(),
		DeliverableToken: uuid.NewString(),
	}
	require.NoError(t, db.Create(eng).Error)
	return eng
}

func seedPipeline(t *testing.T, db *gorm.DB, stage models.OpportunityStage) (*models.Company, *models.Contact, *models.Opportunity) {
	t.Helper()
	company := &models.Company{
		Name:         "Acme Manufacturing",
		Industry:     "manufacturing",
		RevenueRange: "$5M-$10M",
	}
	require.NoError(t, db.Create(company).Error)

	contact := &models.Contact{
		CompanyID:       &company.ID,
		Name:            "Jane Smith",
		Title:           "CEO",
		Email:           "jane@acme.example",
		IsDecisionMaker: true,
	}
	require.NoError(t, db.Create(contact).Error)

	opp := &models.Opportunity{
		CompanyID:        company.ID,
		PrimaryContactID: &contact.ID,
		Title:            "Acme diagnostic",
		Stage:            stage,
		EstimatedValue:   12500,
	}
	require.NoError(t, db.Create(opp).Error)
	return company, contact, opp
}
