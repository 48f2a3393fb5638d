package workflow

import (
	"testing"
	"time"

	"engagement-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSendsAgreement(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusNDASignedEng, 0)

	start := time.Now().AddDate(0, 0, 7)
	got, err := Start(db, clients, eng.ID, StartInput{
		Fee:         15000,
		StartDate:   &start,
		PartnerLead: "George DeVries",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAgreementPending, got.Status)
	assert.Equal(t, 15000.0, got.Fee)

	var legal models.LegalDocument
	require.NoError(t, db.Where("engagement_id = ? AND type = ?", eng.ID, models.LegalAgreement).First(&legal).Error)
	assert.Equal(t, models.LegalSent, legal.Status)
	assert.NotEmpty(t, legal.EnvelopeID)
}

func TestStartWrongStatusConflict(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusNDAPending, 0)

	_, err := Start(db, newTestClients(t), eng.ID, StartInput{Fee: 15000})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestNDASignedWebhook(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusNDAPending, 0)
	require.NoError(t, db.Create(&models.LegalDocument{
		EngagementID: eng.ID,
		Type:         models.LegalNDA,
		Status:       models.LegalSent,
		EnvelopeID:   "env-nda-1",
	}).Error)

	got, err := NDASigned(db, "env-nda-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNDASignedEng, got.Status)

	var legal models.LegalDocument
	require.NoError(t, db.Where("envelope_id = ?", "env-nda-1").First(&legal).Error)
	assert.Equal(t, models.LegalSigned, legal.Status)
	require.NotNil(t, legal.SignedAt)

	// повтор вебхука — no-op, статус не откатывается
	got, err = NDASigned(db, "env-nda-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNDASignedEng, got.Status)

	_, err = NDASigned(db, "env-missing")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestAgreementSignedOpensDocumentIntake(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusAgreementPending, 0)
	require.NoError(t, db.Create(&models.LegalDocument{
		EngagementID: eng.ID,
		Type:         models.LegalAgreement,
		Status:       models.LegalSent,
		EnvelopeID:   "env-agr-1",
	}).Error)

	got, err := AgreementSigned(db, clients, "env-agr-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDocumentsPending, got.Status)

	// веха "договор подписан" выставляет депозитный счёт на половину гонорара
	var deposit models.Invoice
	require.NoError(t, db.Where("engagement_id = ? AND type = ?", eng.ID, models.InvoiceDeposit).First(&deposit).Error)
	assert.Equal(t, models.InvoiceSent, deposit.Status)
	assert.Equal(t, eng.Fee/2, deposit.Amount)

	// повтор вебхука не плодит второй депозитный счёт
	_, err = AgreementSigned(db, clients, "env-agr-1")
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).
		Where("engagement_id = ? AND type = ? AND status <> ?", eng.ID, models.InvoiceDeposit, models.InvoiceVoid).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestBeginPhasesSeedsTemplates(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusDocumentsReceived, 0)

	got, err := BeginPhases(db, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPhase0, got.Status)
	assert.Equal(t, 0, got.Phase)

	var outputs int64
	require.NoError(t, db.Model(&models.PhaseOutput{}).Where("engagement_id = ?", eng.ID).Count(&outputs).Error)
	assert.EqualValues(t, 23, outputs)

	var deliverables int64
	require.NoError(t, db.Model(&models.Deliverable{}).Where("engagement_id = ?", eng.ID).Count(&deliverables).Error)
	assert.EqualValues(t, 6, deliverables)

	var execs []models.PhaseExecution
	require.NoError(t, db.Where("engagement_id = ?", eng.ID).Find(&execs).Error)
	require.Len(t, execs, 1)
	assert.Equal(t, 0, execs[0].Phase)
}

func TestBeginPhasesRequiresDocumentsReceived(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusDocumentsPending, 0)

	_, err := BeginPhases(db, eng.ID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestStatusNeverRegresses(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusPhase3, 3)

	require.NoError(t, advanceStatus(db, eng, models.StatusNDASignedEng))
	assert.Equal(t, models.StatusPhase3, eng.Status)

	var fresh models.Engagement
	require.NoError(t, db.First(&fresh, eng.ID).Error)
	assert.Equal(t, models.StatusPhase3, fresh.Status)
}

func TestClosedEngagementRejectsMutations(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusClosed, 7)

	_, err := MarkDebriefComplete(db, eng.ID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = GenerateInvoice(db, nil, eng.ID, models.InvoiceFinal)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}
