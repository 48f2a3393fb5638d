package models

import "gorm.io/gorm"

// Client — неизменяемый снимок компании и основного контакта,
// который делается один раз при конверсии Opportunity.
type Client struct {
	gorm.Model
	CompanyName         string `gorm:"size:255;not null"`
	PrimaryContactName  string `gorm:"size:255;not null"`
	PrimaryContactEmail string `gorm:"size:255"`
	PrimaryContactPhone string `gorm:"size:50"`
	Industry            string `gorm:"size:100"`
	RevenueRange        string `gorm:"size:50"`
	EmployeeCount       string `gorm:"size:50"`
	WebsiteURL          string `gorm:"size:255"`
	ReferralSource      string `gorm:"size:255"`

	Engagements []Engagement
}
