package handlers

import (
	"errors"
	"net/http"
	"time"

	"engagement-crm/internal/database"
	"engagement-crm/internal/models"
	"engagement-crm/internal/workflow"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ====== КОМПАНИИ ======

type companyForm struct {
	Name          string `json:"name" binding:"required"`
	Website       string `json:"website"`
	Industry      string `json:"industry"`
	RevenueRange  string `json:"revenue_range"`
	EmployeeCount string `json:"employee_count"`
	Location      string `json:"location"`
	Source        string `json:"source"`
	Notes         string `json:"notes"`
}

func CreateCompany(c *gin.Context) {
	var form companyForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	company := models.Company{
		Name:          form.Name,
		Website:       form.Website,
		Industry:      form.Industry,
		RevenueRange:  form.RevenueRange,
		EmployeeCount: form.EmployeeCount,
		Location:      form.Location,
		Source:        form.Source,
		Notes:         form.Notes,
	}
	if err := database.DB.Create(&company).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания компании"})
		return
	}
	c.JSON(http.StatusCreated, company)
}

func ListCompanies(c *gin.Context) {
	var companies []models.Company
	if err := database.DB.Preload("Contacts").Order("name").Find(&companies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка загрузки компаний"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies, "count": len(companies)})
}

func UpdateCompany(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var company models.Company
	if err := database.DB.First(&company, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Компания не найдена"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var form companyForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}
	company.Name = form.Name
	company.Website = form.Website
	company.Industry = form.Industry
	company.RevenueRange = form.RevenueRange
	company.EmployeeCount = form.EmployeeCount
	company.Location = form.Location
	company.Source = form.Source
	company.Notes = form.Notes
	if err := database.DB.Save(&company).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения компании"})
		return
	}
	c.JSON(http.StatusOK, company)
}

// ====== КОНТАКТЫ ======

type contactForm struct {
	Name            string `json:"name" binding:"required"`
	Title           string `json:"title"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	LinkedinURL     string `json:"linkedin_url"`
	IsDecisionMaker bool   `json:"is_decision_maker"`
	Notes           string `json:"notes"`
}

func CreateContact(c *gin.Context) {
	companyID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var company models.Company
	if err := database.DB.First(&company, companyID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Компания не найдена"})
		return
	}

	var form contactForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	contact := models.Contact{
		CompanyID:       &company.ID,
		Name:            form.Name,
		Title:           form.Title,
		Email:           form.Email,
		Phone:           form.Phone,
		LinkedinURL:     form.LinkedinURL,
		IsDecisionMaker: form.IsDecisionMaker,
		Notes:           form.Notes,
	}
	if err := database.DB.Create(&contact).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания контакта"})
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// ====== СДЕЛКИ ======

type opportunityForm struct {
	CompanyID          uint       `json:"company_id" binding:"required"`
	PrimaryContactID   *uint      `json:"primary_contact_id"`
	Title              string     `json:"title" binding:"required"`
	Stage              string     `json:"stage"`
	EstimatedValue     float64    `json:"estimated_value"`
	EstimatedCloseDate *time.Time `json:"estimated_close_date"`
	Notes              string     `json:"notes"`
}

func CreateOpportunity(c *gin.Context) {
	var form opportunityForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	stage := models.OpportunityStage(form.Stage)
	if form.Stage == "" {
		stage = models.StageIdentified
	}
	if !models.ValidStage(stage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестная стадия: " + form.Stage})
		return
	}

	var company models.Company
	if err := database.DB.First(&company, form.CompanyID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Компания не найдена"})
		return
	}

	opp := models.Opportunity{
		CompanyID:          company.ID,
		PrimaryContactID:   form.PrimaryContactID,
		Title:              form.Title,
		Stage:              stage,
		EstimatedValue:     form.EstimatedValue,
		EstimatedCloseDate: form.EstimatedCloseDate,
		Notes:              form.Notes,
	}
	if err := database.DB.Create(&opp).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания сделки"})
		return
	}
	c.JSON(http.StatusCreated, opp)
}

// ListOpportunities — канбан-доска: сделки сгруппированы по стадиям.
func ListOpportunities(c *gin.Context) {
	var opps []models.Opportunity
	q := database.DB.Preload("Company").Preload("PrimaryContact").Order("updated_at DESC")
	if stage := c.Query("stage"); stage != "" {
		q = q.Where("stage = ?", stage)
	}
	if err := q.Find(&opps).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка загрузки сделок"})
		return
	}

	board := make(map[string][]models.Opportunity)
	for _, o := range opps {
		board[string(o.Stage)] = append(board[string(o.Stage)], o)
	}
	c.JSON(http.StatusOK, gin.H{"opportunities": opps, "board": board, "count": len(opps)})
}

func GetOpportunity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var opp models.Opportunity
	if err := database.DB.Preload("Company").Preload("Company.Contacts").Preload("PrimaryContact").
		First(&opp, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Сделка не найдена"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, opp)
}

type stageForm struct {
	Stage      string `json:"stage" binding:"required"`
	LossReason string `json:"loss_reason"`
}

func SetOpportunityStage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var form stageForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	res, err := workflow.SetStage(database.DB, id, models.OpportunityStage(form.Stage), form.LossReason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"opportunity":       res.Opportunity,
		"conversion_prompt": res.ConversionPrompt,
	})
}

type convertForm struct {
	Fee                float64    `json:"fee"`
	PreferredStartDate *time.Time `json:"preferred_start_date"`
	PartnerLead        string     `json:"partner_lead"`
	ContactIDs         []uint     `json:"contact_ids"`
	DiscoveryNotes     string     `json:"discovery_notes"`
	PainPoints         string     `json:"pain_points"`
	ReferralSource     string     `json:"referral_source"`
	SendNDA            bool       `json:"send_nda"`
}

func ConvertOpportunity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var form convertForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные"})
		return
	}

	res, err := workflow.Convert(database.DB, Collab, id, workflow.ConvertInput{
		Fee:                form.Fee,
		PreferredStartDate: form.PreferredStartDate,
		PartnerLead:        form.PartnerLead,
		ContactIDs:         form.ContactIDs,
		DiscoveryNotes:     form.DiscoveryNotes,
		PainPoints:         form.PainPoints,
		ReferralSource:     form.ReferralSource,
		SendNDA:            form.SendNDA,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"client_id":     res.ClientID,
		"engagement_id": res.EngagementID,
		"contact_count": res.ContactCount,
		"nda_sent":      res.NDASent,
		"status":        res.Status,
	})
}
