package model

import "time"

// 班次优先级
const (
	PriorityCritical = "critical"
	PriorityUrgent   = "urgent"
	PriorityNormal   = "normal"
)

// PriorityRank 优先级→排序权（数值越小越先处理）
func PriorityRank(priority string) int {
	switch priority {
	case PriorityCritical:
		return 0
	case PriorityUrgent:
		return 1
	default:
		return 2
	}
}

// Hospital 医院投影表 — 对应 hospitals
type Hospital struct {
	HospitalID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"hospital_id"`
	Name       string  `gorm:"type:varchar(200);not null"                     json:"name"`
	State      string  `gorm:"type:varchar(10);not null"                      json:"state"`
	Latitude   float64 `gorm:"not null;default:0"                             json:"latitude"`
	Longitude  float64 `gorm:"not null;default:0"                             json:"longitude"`
}

func (Hospital) TableName() string { return "hospitals" }

// Shift 班次投影表 — 对应 shifts
// 创建后除 status 外不可变
type Shift struct {
	ShiftID        string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"shift_id"`
	HospitalID     string      `gorm:"type:uuid;not null"                             json:"hospital_id"`
	StartAt        time.Time   `gorm:"not null"                                       json:"start_at"`
	EndAt          time.Time   `gorm:"not null"                                       json:"end_at"`
	RequiredSkills StringArray `gorm:"type:text[]"                                    json:"required_skills,omitempty"`
	RequiredCerts  StringArray `gorm:"type:text[]"                                    json:"required_certs,omitempty"`
	Priority       string      `gorm:"type:varchar(10);not null;default:'normal'"     json:"priority"`
	EHRSystem      string      `gorm:"type:varchar(50)"                               json:"ehr_system,omitempty"`
	Status         string      `gorm:"type:varchar(20);not null;default:'open'"       json:"status"` // open | assigned | closed
	BaseModel

	// 关联
	Hospital *Hospital `gorm:"foreignKey:HospitalID;references:HospitalID" json:"hospital,omitempty"`
}

func (Shift) TableName() string { return "shifts" }

// Hours 班次时长（小时）
func (s *Shift) Hours() float64 {
	return s.EndAt.Sub(s.StartAt).Hours()
}

// WeekStart 班次所在自然周的周一（UTC 日期），周工时账本按此分桶
func (s *Shift) WeekStart() time.Time {
	return WeekStartOf(s.StartAt)
}

// WeekStartOf 计算任意时刻所在自然周的周一零点（UTC）
func WeekStartOf(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // 周日归入当周
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -(weekday - 1))
}

// Overlaps 判断两个时间区间是否重叠
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
