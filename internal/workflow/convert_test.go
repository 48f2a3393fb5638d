package workflow

import (
	"testing"

	"engagement-crm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertCreatesClientAndEngagement(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	company, contact, opp := seedPipeline(t, db, models.StageWon)

	res, err := Convert(db, clients, opp.ID, ConvertInput{
		Fee:         12500,
		PartnerLead: "George DeVries",
		ContactIDs:  []uint{contact.ID},
		SendNDA:     true,
	})
	require.NoError(t, err)
	require.NotZero(t, res.ClientID)
	require.NotZero(t, res.EngagementID)
	assert.Equal(t, 1, res.ContactCount)
	assert.True(t, res.NDASent)
	assert.Equal(t, models.StatusNDAPending, res.Status)

	var client models.Client
	require.NoError(t, db.First(&client, res.ClientID).Error)
	assert.Equal(t, company.Name, client.CompanyName)
	assert.Equal(t, contact.Name, client.PrimaryContactName)
	assert.Equal(t, contact.Email, client.PrimaryContactEmail)

	var eng models.Engagement
	require.NoError(t, db.First(&eng, res.EngagementID).Error)
	assert.Equal(t, models.StatusNDAPending, eng.Status)
	assert.Equal(t, 0, eng.Phase)
	assert.Equal(t, 12500.0, eng.Fee)
	assert.NotEmpty(t, eng.UploadToken)
	assert.NotEmpty(t, eng.DeliverableToken)

	var ics []models.InterviewContact
	require.NoError(t, db.Where("engagement_id = ?", eng.ID).Find(&ics).Error)
	require.Len(t, ics, 1)
	assert.Equal(t, 1, ics[0].ContactNumber)
	assert.Equal(t, contact.Name, ics[0].Name)

	var nda models.LegalDocument
	require.NoError(t, db.Where("engagement_id = ? AND type = ?", eng.ID, models.LegalNDA).First(&nda).Error)
	assert.Equal(t, models.LegalSent, nda.Status)
	assert.NotEmpty(t, nda.EnvelopeID)

	var updated models.Opportunity
	require.NoError(t, db.First(&updated, opp.ID).Error)
	require.NotNil(t, updated.ConvertedClientID)
	require.NotNil(t, updated.ConvertedEngagementID)
	assert.Equal(t, res.ClientID, *updated.ConvertedClientID)
	assert.Equal(t, res.EngagementID, *updated.ConvertedEngagementID)
	assert.Equal(t, models.StageWon, updated.Stage)
}

func TestConvertTwiceIsConflict(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	_, _, opp := seedPipeline(t, db, models.StageWon)

	_, err := Convert(db, clients, opp.ID, ConvertInput{Fee: 12500})
	require.NoError(t, err)

	_, err = Convert(db, clients, opp.ID, ConvertInput{Fee: 12500})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	var engCount int64
	require.NoError(t, db.Model(&models.Engagement{}).Count(&engCount).Error)
	assert.EqualValues(t, 1, engCount)

	var clientCount int64
	require.NoError(t, db.Model(&models.Client{}).Count(&clientCount).Error)
	assert.EqualValues(t, 1, clientCount)
}

func TestConvertFromEarlyStageRejected(t *testing.T) {
	db := newTestDB(t)
	_, _, opp := seedPipeline(t, db, models.StageIdentified)

	_, err := Convert(db, newTestClients(t), opp.ID, ConvertInput{Fee: 12500})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestConvertUnknownContactRollsBack(t *testing.T) {
	db := newTestDB(t)
	_, _, opp := seedPipeline(t, db, models.StageWon)

	_, err := Convert(db, newTestClients(t), opp.ID, ConvertInput{
		Fee:        12500,
		ContactIDs: []uint{9999},
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	// транзакция откатилась целиком: ни клиента, ни проекта
	var engCount, clientCount int64
	require.NoError(t, db.Model(&models.Engagement{}).Count(&engCount).Error)
	require.NoError(t, db.Model(&models.Client{}).Count(&clientCount).Error)
	assert.Zero(t, engCount)
	assert.Zero(t, clientCount)

	var fresh models.Opportunity
	require.NoError(t, db.First(&fresh, opp.ID).Error)
	assert.Nil(t, fresh.ConvertedEngagementID)
}

func TestConvertContactLimit(t *testing.T) {
	db := newTestDB(t)
	_, _, opp := seedPipeline(t, db, models.StageWon)

	_, err := Convert(db, newTestClients(t), opp.ID, ConvertInput{
		Fee:        12500,
		ContactIDs: []uint{1, 2, 3, 4},
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSetStageLostRequiresReason(t *testing.T) {
	db := newTestDB(t)
	_, _, opp := seedPipeline(t, db, models.StageDiscoveryComplete)

	_, err := SetStage(db, opp.ID, models.StageLost, "  ")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	res, err := SetStage(db, opp.ID, models.StageLost, "chose competitor")
	require.NoError(t, err)
	assert.Equal(t, "chose competitor", res.Opportunity.LossReason)
}

func TestSetStageWonPromptsConversion(t *testing.T) {
	db := newTestDB(t)
	clients := newTestClients(t)
	_, _, opp := seedPipeline(t, db, models.StageNegotiation)

	res, err := SetStage(db, opp.ID, models.StageWon, "")
	require.NoError(t, err)
	assert.True(t, res.ConversionPrompt)

	_, err = Convert(db, clients, opp.ID, ConvertInput{Fee: 12500})
	require.NoError(t, err)

	res, err = SetStage(db, opp.ID, models.StageWon, "")
	require.NoError(t, err)
	assert.False(t, res.ConversionPrompt)
}
