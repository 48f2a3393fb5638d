package workflow

import (
	"testing"
	"time"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func approveWave(t *testing.T, db *gorm.DB, store *collab.FileStore, engagementID uint, wave int) {
	t.Helper()
	var batch []models.Deliverable
	require.NoError(t, db.Where("engagement_id = ? AND wave = ?", engagementID, wave).Find(&batch).Error)
	require.NotEmpty(t, batch)
	for _, d := range batch {
		_, err := UploadDeliverable(db, store, engagementID, d.ID, string(d.Type)+".pdf", []byte("content"))
		require.NoError(t, err)
		_, err = ApproveDeliverable(db, d.ID)
		require.NoError(t, err)
	}
}

func TestEnsureDeliverablesIdempotent(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusPhase5, 5)

	all, err := EnsureDeliverables(db, eng.ID)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	all, err = EnsureDeliverables(db, eng.ID)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestApproveRequiresFile(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusPhase5, 5)
	all, err := EnsureDeliverables(db, eng.ID)
	require.NoError(t, err)

	_, err = ApproveDeliverable(db, all[0].ID)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestReleaseWave1RequiresAllApproved(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusPhasesComplete, 7)
	_, err := EnsureDeliverables(db, eng.ID)
	require.NoError(t, err)

	_, err = ReleaseWave1(db, clients, eng.ID)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	approveWave(t, db, clients.Store, eng.ID, 1)

	got, err := ReleaseWave1(db, clients, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWave1Released, got.Status)

	var released []models.Deliverable
	require.NoError(t, db.Where("engagement_id = ? AND wave = ? AND status = ?",
		eng.ID, 1, models.DeliverableReleased).Find(&released).Error)
	assert.Len(t, released, 4)
}

func TestReleaseWave2RequiresDebrief(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusWave1Released, 7)
	_, err := EnsureDeliverables(db, eng.ID)
	require.NoError(t, err)
	approveWave(t, db, clients.Store, eng.ID, 2)

	_, err = ReleaseWave2(db, clients, eng.ID)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	// дебриф после выдачи первой волны не откатывает статус назад,
	// но флаг обязан сохраниться в базе, а не только в памяти
	got, err := MarkDebriefComplete(db, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWave1Released, got.Status)
	assert.True(t, got.DebriefComplete)

	var fresh models.Engagement
	require.NoError(t, db.First(&fresh, eng.ID).Error)
	assert.True(t, fresh.DebriefComplete)

	got, err = ReleaseWave2(db, clients, eng.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWave2Released, got.Status)
}

func TestDebriefRequiresCompletedPhases(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusNDAPending, 0)

	_, err := MarkDebriefComplete(db, eng.ID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	var fresh models.Engagement
	require.NoError(t, db.First(&fresh, eng.ID).Error)
	assert.Equal(t, models.StatusNDAPending, fresh.Status)
	assert.False(t, fresh.DebriefComplete)

	// без дебрифа проект не перепрыгивает к архивации
	_, err = Archive(db, newTestClients(t), eng.ID, "partner")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestApproveReleasedDeliverableConflict(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusPhasesComplete, 7)
	_, err := EnsureDeliverables(db, eng.ID)
	require.NoError(t, err)
	approveWave(t, db, clients.Store, eng.ID, 1)
	_, err = ReleaseWave1(db, clients, eng.ID)
	require.NoError(t, err)

	var d models.Deliverable
	require.NoError(t, db.Where("engagement_id = ? AND wave = ?", eng.ID, 1).First(&d).Error)
	_, err = ApproveDeliverable(db, d.ID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestApproveOnlyFromDraft(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusPhase5, 5)
	all, err := EnsureDeliverables(db, eng.ID)
	require.NoError(t, err)

	d := all[0]
	_, err = UploadDeliverable(db, clients.Store, eng.ID, d.ID, "report.pdf", []byte("v1"))
	require.NoError(t, err)

	approved, err := ApproveDeliverable(db, d.ID)
	require.NoError(t, err)
	require.NotNil(t, approved.ApprovedAt)
	firstApproval := approved.ApprovedAt

	// повторное утверждение не проходит и не переписывает отметку времени
	_, err = ApproveDeliverable(db, d.ID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	var fresh models.Deliverable
	require.NoError(t, db.First(&fresh, d.ID).Error)
	require.NotNil(t, fresh.ApprovedAt)
	assert.Equal(t, firstApproval.Unix(), fresh.ApprovedAt.Unix())
}

func TestClosedEngagementDeliverablesLocked(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusClosed, 7)
	require.NoError(t, db.Create(&models.Deliverable{
		EngagementID: eng.ID,
		Type:         models.DeliverableExecSummary,
		Wave:         1,
		Status:       models.DeliverableDraft,
		StoragePath:  "orphan/summary.pdf",
	}).Error)

	var d models.Deliverable
	require.NoError(t, db.Where("engagement_id = ?", eng.ID).First(&d).Error)
	_, err := ApproveDeliverable(db, d.ID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestPortalShowsOnlyReleased(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusPhasesComplete, 7)
	_, err := EnsureDeliverables(db, eng.ID)
	require.NoError(t, err)
	approveWave(t, db, clients.Store, eng.ID, 1)
	_, err = ReleaseWave1(db, clients, eng.ID)
	require.NoError(t, err)

	view, err := PortalByToken(db, eng.DeliverableToken)
	require.NoError(t, err)
	assert.Equal(t, eng.ID, view.EngagementID)
	assert.Len(t, view.Wave1, 4)
	assert.Empty(t, view.Wave2) // вторая волна ещё не выдана

	_, err = PortalByToken(db, "no-such-token")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	old := time.Now().AddDate(0, 0, -31)
	require.NoError(t, db.Model(&models.Engagement{}).Where("id = ?", eng.ID).
		Update("created_at", old).Error)
	_, err = PortalByToken(db, eng.DeliverableToken)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}
