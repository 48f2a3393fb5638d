package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"engagement-crm/internal/collab"
	"engagement-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveClosesEngagementAndSeedsFollowUps(t *testing.T) {
	db := newTestDB(t)
	baseDir := t.TempDir()
	archiveDir := t.TempDir()
	clients := &collab.Clients{
		ESign:        collab.NewESign("", ""),
		Payments:     collab.NewPayments("", ""),
		Email:        collab.NewEmail("", ""),
		Store:        collab.NewFileStore(baseDir, archiveDir),
		PartnerEmail: "partner@example.com",
	}
	eng := seedEngagement(t, db, models.StatusWave2Released, 7)

	workFile := fmt.Sprintf("%d/04_Deliverables/summary.pdf", eng.ID)
	require.NoError(t, clients.Store.Save(workFile, []byte("final")))

	res, err := Archive(db, clients, eng.ID, "partner")
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesMoved)
	assert.Equal(t, 3, res.FollowUpsCreated)

	var fresh models.Engagement
	require.NoError(t, db.First(&fresh, eng.ID).Error)
	assert.Equal(t, models.StatusClosed, fresh.Status)
	require.NotNil(t, fresh.ArchivedAt)

	// файл переехал в холодный архив
	_, err = os.Stat(filepath.Join(baseDir, workFile))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(archiveDir, workFile))
	assert.NoError(t, err)

	// манифест лежит рядом и описывает проект
	raw, err := os.ReadFile(filepath.Join(archiveDir, res.ManifestPath))
	require.NoError(t, err)
	var manifest map[string]any
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.EqualValues(t, eng.ID, manifest["engagement_id"])
	assert.Equal(t, "partner", manifest["archived_by"])

	var followUps int64
	require.NoError(t, db.Model(&models.FollowUp{}).Where("engagement_id = ?", eng.ID).Count(&followUps).Error)
	assert.EqualValues(t, 3, followUps)
}

func TestArchiveTwiceIsConflict(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	eng := seedEngagement(t, db, models.StatusPhasesComplete, 7)

	_, err := Archive(db, clients, eng.ID, "partner")
	require.NoError(t, err)

	_, err = Archive(db, clients, eng.ID, "partner")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	// последовательность фоллоу-апов заведена ровно один раз
	var followUps int64
	require.NoError(t, db.Model(&models.FollowUp{}).Where("engagement_id = ?", eng.ID).Count(&followUps).Error)
	assert.EqualValues(t, 3, followUps)
}

func TestArchiveBeforePhasesCompleteRejected(t *testing.T) {
	db := newTestDB(t)
	eng := seedEngagement(t, db, models.StatusPhase5, 5)

	_, err := Archive(db, newTestClients(t), eng.ID, "partner")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	var fresh models.Engagement
	require.NoError(t, db.First(&fresh, eng.ID).Error)
	assert.Equal(t, models.StatusPhase5, fresh.Status)
}
