package workflow

import (
	"fmt"
	"testing"

	"engagement-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func outputByNumber(t *testing.T, db *gorm.DB, engagementID uint, phase, number int) *models.PhaseOutput {
	t.Helper()
	var out models.PhaseOutput
	require.NoError(t, db.Where("engagement_id = ? AND phase = ? AND output_number = ?",
		engagementID, phase, number).First(&out).Error)
	return &out
}

func TestReviewGateRequiresConfirmation(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusPhase1, 1)

	_, err := AdvancePhase(db, nil, eng.ID, AdvancePhaseInput{})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	res, err := AdvancePhase(db, nil, eng.ID, AdvancePhaseInput{ReviewConfirmed: true, Notes: "baseline reviewed"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FromPhase)
	assert.Equal(t, 2, res.Engagement.Phase)
	assert.Equal(t, models.StatusPhase2, res.Engagement.Status)
}

func TestNonGatePhaseAdvancesFreely(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusPhase2, 2)

	res, err := AdvancePhase(db, nil, eng.ID, AdvancePhaseInput{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Engagement.Phase)
	assert.Equal(t, models.StatusPhase3, res.Engagement.Status)
}

func TestPhaseClampsAtSeven(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusPhase6, 6)

	// фаза 6 — ревью-гейт
	res, err := AdvancePhase(db, clients, eng.ID, AdvancePhaseInput{ReviewConfirmed: true})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Engagement.Phase)
	assert.Equal(t, models.StatusPhase7, res.Engagement.Status)

	// фаза 7 тоже гейт; переход ведёт в phases_complete, номер фазы не растёт
	res, err = AdvancePhase(db, clients, eng.ID, AdvancePhaseInput{ReviewConfirmed: true})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Engagement.Phase)
	assert.Equal(t, models.StatusPhasesComplete, res.Engagement.Status)

	// веха phases_complete выставляет финальный счёт
	var final models.Invoice
	require.NoError(t, db.Where("engagement_id = ? AND type = ?", eng.ID, models.InvoiceFinal).First(&final).Error)
	assert.Equal(t, eng.Fee/2, final.Amount)

	// после завершения фаз продвигать больше нечего
	_, err = AdvancePhase(db, clients, eng.ID, AdvancePhaseInput{ReviewConfirmed: true})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	var fresh models.Engagement
	require.NoError(t, db.First(&fresh, eng.ID).Error)
	assert.Equal(t, 7, fresh.Phase)
	assert.Equal(t, models.StatusPhasesComplete, fresh.Status)
}

func TestSeedPhaseOutputsIdempotent(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusPhase0, 0)

	created, err := SeedPhaseOutputs(db, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, 23, created)

	created, err = SeedPhaseOutputs(db, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var count int64
	require.NoError(t, db.Model(&models.PhaseOutput{}).Where("engagement_id = ?", eng.ID).Count(&count).Error)
	assert.EqualValues(t, 23, count)
}

func TestUploadOutputValidatesAndReplaces(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusPhase0, 0)
	_, err := SeedPhaseOutputs(db, eng.ID)
	require.NoError(t, err)

	out := outputByNumber(t, db, eng.ID, 0, 1)

	_, err = UploadOutput(db, clients.Store, out.ID, "proposal.exe", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	uploaded, err := UploadOutput(db, clients.Store, out.ID, "proposal.docx", []byte("draft one"))
	require.NoError(t, err)
	assert.Equal(t, models.OutputUploaded, uploaded.Status)
	assert.Equal(t, fmt.Sprintf("%d/00_Engagement_Info/Engagement_Proposal.docx", eng.ID), uploaded.StoragePath)

	accepted, err := AcceptOutput(db, uploaded.ID, "partner")
	require.NoError(t, err)
	assert.Equal(t, models.OutputAccepted, accepted.Status)
	assert.Equal(t, "partner", accepted.AcceptedBy)

	// повторная загрузка заменяет файл и сбрасывает принятие
	replaced, err := UploadOutput(db, clients.Store, out.ID, "proposal.docx", []byte("draft two"))
	require.NoError(t, err)
	assert.Equal(t, models.OutputUploaded, replaced.Status)
	assert.Nil(t, replaced.AcceptedAt)
	assert.Empty(t, replaced.AcceptedBy)
}

func TestAcceptRequiresUploadedStatus(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusPhase0, 0)
	_, err := SeedPhaseOutputs(db, eng.ID)
	require.NoError(t, err)

	out := outputByNumber(t, db, eng.ID, 0, 2)
	_, err = AcceptOutput(db, out.ID, "partner")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestAcceptAllOutputs(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusPhase1, 1)
	_, err := SeedPhaseOutputs(db, eng.ID)
	require.NoError(t, err)

	_, err = AcceptAllOutputs(db, eng.ID, 1, "partner")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	for _, num := range []int{1, 2} {
		out := outputByNumber(t, db, eng.ID, 1, num)
		_, err = UploadOutput(db, clients.Store, out.ID, "memo.md", []byte("notes"))
		require.NoError(t, err)
	}

	accepted, err := AcceptAllOutputs(db, eng.ID, 1, "partner")
	require.NoError(t, err)
	assert.Len(t, accepted, 2)
}

func TestClosedEngagementRejectsAcceptance(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusClosed, 7)
	_, err := SeedPhaseOutputs(db, eng.ID)
	require.NoError(t, err)

	out := outputByNumber(t, db, eng.ID, 1, 1)
	require.NoError(t, db.Model(&models.PhaseOutput{}).Where("id = ?", out.ID).
		Update("status", models.OutputUploaded).Error)

	_, err = AcceptOutput(db, out.ID, "partner")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = AcceptAllOutputs(db, eng.ID, 1, "partner")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	var fresh models.PhaseOutput
	require.NoError(t, db.First(&fresh, out.ID).Error)
	assert.Equal(t, models.OutputUploaded, fresh.Status)
}

func TestAcceptingPhaseFiveOutputApprovesDeliverable(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusPhase5, 5)
	_, err := SeedPhaseOutputs(db, eng.ID)
	require.NoError(t, err)
	_, err = EnsureDeliverables(db, eng.ID)
	require.NoError(t, err)

	out := outputByNumber(t, db, eng.ID, 5, 1) // Executive Summary
	_, err = UploadOutput(db, clients.Store, out.ID, "summary.docx", []byte("exec summary"))
	require.NoError(t, err)
	_, err = AcceptOutput(db, out.ID, "partner")
	require.NoError(t, err)

	var d models.Deliverable
	require.NoError(t, db.Where("engagement_id = ? AND type = ?", eng.ID, models.DeliverableExecSummary).First(&d).Error)
	assert.Equal(t, models.DeliverableApproved, d.Status)
	assert.NotEmpty(t, d.StoragePath)
}
