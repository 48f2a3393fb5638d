package workflow

import (
	"testing"
	"time"

	"engagement-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedFollowUps(t *testing.T, db *gorm.DB, eng *models.Engagement) []models.FollowUp {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := createFollowUpSequence(tx, eng)
		return err
	}))
	items, err := ListFollowUps(db, eng.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	return items
}

func TestFollowUpSequenceSchedule(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusClosed, 7)
	items := seedFollowUps(t, db, eng)

	assert.Equal(t, models.Touchpoint30Day, items[0].Touchpoint)
	assert.Equal(t, models.Touchpoint60Day, items[1].Touchpoint)
	assert.Equal(t, models.Touchpoint90Day, items[2].Touchpoint)

	for i, days := range []int{30, 60, 90} {
		assert.Equal(t, models.FollowUpScheduled, items[i].Status)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, days), items[i].ScheduledDate, time.Minute)
	}
}

func TestRenderFollowUpSubstitutesPlaceholders(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusClosed, 7)
	items := seedFollowUps(t, db, eng)

	full, err := getEngagement(db, eng.ID)
	require.NoError(t, err)

	subject, body := RenderFollowUp(&items[1], full)
	assert.Contains(t, subject, "Acme Manufacturing")
	assert.Contains(t, body, "Hi Jane Smith")
	assert.Contains(t, body, "George DeVries")
	assert.NotContains(t, body, "{contact_name}")
	assert.NotContains(t, body, "{metric_1_from_diagnostic}")

	// пустые поля подменяются нейтральными значениями
	blank := &models.Engagement{Client: models.Client{}}
	_, body = RenderFollowUp(&items[0], blank)
	assert.Contains(t, body, "Hi there")
	assert.Contains(t, body, "your BaxterLabs partner")
}

func TestSendFollowUpOnce(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusClosed, 7)
	items := seedFollowUps(t, db, eng)

	sent, err := SendFollowUp(db, clients, items[0].ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.FollowUpSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.NotEmpty(t, sent.ActualSubject)
	assert.Contains(t, sent.ActualBody, "Hi Jane Smith")

	_, err = SendFollowUp(db, clients, items[0].ID, "", "")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	// отправленный тачпоинт нельзя пропустить
	_, err = SkipFollowUp(db, items[0].ID, "")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestSnoozeDefaultsToSevenDays(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusClosed, 7)
	items := seedFollowUps(t, db, eng)

	snoozed, err := SnoozeFollowUp(db, items[0].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.FollowUpSnoozed, snoozed.Status)
	require.NotNil(t, snoozed.SnoozedUntil)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *snoozed.SnoozedUntil, time.Minute)
}

func TestSkipThenSendConflict(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusClosed, 7)
	items := seedFollowUps(t, db, eng)

	skipped, err := SkipFollowUp(db, items[2].ID, "client went dark")
	require.NoError(t, err)
	assert.Equal(t, models.FollowUpSkipped, skipped.Status)
	assert.Equal(t, "client went dark", skipped.Notes)

	_, err = SendFollowUp(db, clients, items[2].ID, "", "")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestEditFollowUpDraft(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusClosed, 7)
	items := seedFollowUps(t, db, eng)

	subject := "Custom subject"
	edited, err := EditFollowUp(db, items[0].ID, &subject, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Custom subject", edited.ActualSubject)
	assert.Empty(t, edited.ActualBody)
}

func TestDueFollowUps(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusClosed, 7)
	items := seedFollowUps(t, db, eng)

	due, err := DueFollowUps(db)
	require.NoError(t, err)
	assert.Len(t, due, 3)

	// отложенный с не истёкшим сроком выпадает из выборки
	_, err = SnoozeFollowUp(db, items[0].ID, 14)
	require.NoError(t, err)
	due, err = DueFollowUps(db)
	require.NoError(t, err)
	assert.Len(t, due, 2)

	// отложенный с истёкшим сроком снова в выборке
	past := time.Now().AddDate(0, 0, -1)
	require.NoError(t, db.Model(&models.FollowUp{}).Where("id = ?", items[0].ID).
		Update("snoozed_until", past).Error)
	due, err = DueFollowUps(db)
	require.NoError(t, err)
	assert.Len(t, due, 3)
}
