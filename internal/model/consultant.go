package model

import "time"

// 背景调查状态
const (
	BackgroundClear   = "clear"
	BackgroundPending = "pending"
	BackgroundFailed  = "failed"
)

// Consultant 顾问投影表 — 对应 consultants
// 数据由外部人力系统同步，引擎侧只读
type Consultant struct {
	ConsultantID          string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"consultant_id"`
	Name                  string      `gorm:"type:varchar(100);not null"                     json:"name"`
	Email                 string      `gorm:"type:varchar(255);not null"                     json:"email"`
	HourlyRate            float64     `gorm:"type:numeric(10,2);not null;default:0"          json:"hourly_rate"`
	HomeState             string      `gorm:"type:varchar(10);not null"                      json:"home_state"`
	Latitude              float64     `gorm:"not null;default:0"                             json:"latitude"`
	Longitude             float64     `gorm:"not null;default:0"                             json:"longitude"`
	Languages             StringArray `gorm:"type:text[]"                                    json:"languages,omitempty"`
	EHRSystems            StringArray `gorm:"type:text[]"                                    json:"ehr_systems,omitempty"`
	PreferredHospitalIDs  StringArray `gorm:"type:text[]"                                    json:"preferred_hospital_ids,omitempty"`
	ReliabilityScore      float64     `gorm:"not null;default:0"                             json:"reliability_score"` // 0-100
	CompletionRate        float64     `gorm:"not null;default:0"                             json:"completion_rate"`   // 0-1
	Rating                float64     `gorm:"not null;default:0"                             json:"rating"`            // 0-5
	AvailableFrom         *time.Time  `json:"available_from,omitempty"`
	WorkAuthorized        bool        `gorm:"not null;default:false"                         json:"work_authorized"`
	BackgroundCheckStatus string      `gorm:"type:varchar(20);not null;default:'pending'"    json:"background_check_status"`
	Sanctioned            bool        `gorm:"not null;default:false"                         json:"sanctioned"`
	BaseModel

	// 关联
	Skills          []ConsultantSkill `gorm:"foreignKey:ConsultantID" json:"skills,omitempty"`
	Certifications  []Certification   `gorm:"foreignKey:ConsultantID" json:"certifications,omitempty"`
	Licenses        []License         `gorm:"foreignKey:ConsultantID" json:"licenses,omitempty"`
	ComplianceItems []ComplianceItem  `gorm:"foreignKey:ConsultantID" json:"compliance_items,omitempty"`
}

func (Consultant) TableName() string { return "consultants" }

// ConsultantSkill 顾问技能表 — 对应 consultant_skills
type ConsultantSkill struct {
	SkillID      string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"skill_id"`
	ConsultantID string `gorm:"type:uuid;not null"                             json:"consultant_id"`
	SkillType    string `gorm:"type:varchar(100);not null"                     json:"skill_type"`
	Proficiency  int    `gorm:"type:smallint;not null;default:1"               json:"proficiency"` // 1-5
}

func (ConsultantSkill) TableName() string { return "consultant_skills" }

// Certification 顾问证书表 — 对应 certifications
type Certification struct {
	CertificationID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"certification_id"`
	ConsultantID    string    `gorm:"type:uuid;not null"                             json:"consultant_id"`
	CertType        string    `gorm:"type:varchar(100);not null"                     json:"cert_type"`
	IssuingBody     string    `gorm:"type:varchar(200);not null"                     json:"issuing_body"`
	ExpiresAt       time.Time `gorm:"not null"                                       json:"expires_at"`
}

func (Certification) TableName() string { return "certifications" }

// License 州执照表 — 对应 licenses
type License struct {
	LicenseID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"license_id"`
	ConsultantID string    `gorm:"type:uuid;not null"                             json:"consultant_id"`
	State        string    `gorm:"type:varchar(10);not null"                      json:"state"`
	ExpiresAt    time.Time `gorm:"not null"                                       json:"expires_at"`
}

func (License) TableName() string { return "licenses" }

// ComplianceItem 合规项表 — 对应 compliance_items（年审等）
type ComplianceItem struct {
	ItemID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"item_id"`
	ConsultantID string     `gorm:"type:uuid;not null"                             json:"consultant_id"`
	ItemType     string     `gorm:"type:varchar(100);not null"                     json:"item_type"`
	Status       string     `gorm:"type:varchar(20);not null;default:'current'"    json:"status"` // current | overdue
	DueAt        *time.Time `json:"due_at,omitempty"`
}

func (ComplianceItem) TableName() string { return "compliance_items" }
