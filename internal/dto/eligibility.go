package dto

// ── 资格校验模块 DTO ──

// EligibilityResponse 资格校验结果
type EligibilityResponse struct {
	ConsultantID string   `json:"consultant_id"`
	Eligible     bool     `json:"eligible"`
	Reasons      []string `json:"reasons,omitempty"` // 全部失败原因，不止第一条
	ComputedAt   string   `json:"computed_at"`
	ExpiresAt    string   `json:"expires_at"`
	FromCache    bool     `json:"from_cache"`
}

// CertificationReportResponse 证书子报告
type CertificationReportResponse struct {
	ConsultantID string              `json:"consultant_id"`
	Items        []CertificationItem `json:"items"`
}

// CertificationItem 单条证书状态
type CertificationItem struct {
	CertType    string `json:"cert_type"`
	IssuingBody string `json:"issuing_body"`
	ExpiresAt   string `json:"expires_at"`
	Expired     bool   `json:"expired"`
}

// LicenseReportResponse 执照子报告
type LicenseReportResponse struct {
	ConsultantID string        `json:"consultant_id"`
	Items        []LicenseItem `json:"items"`
}

// LicenseItem 单条执照状态
type LicenseItem struct {
	State     string `json:"state"`
	ExpiresAt string `json:"expires_at"`
	Expired   bool   `json:"expired"`
}

// BackgroundReportResponse 背景调查子报告
type BackgroundReportResponse struct {
	ConsultantID   string `json:"consultant_id"`
	Status         string `json:"status"`
	Sanctioned     bool   `json:"sanctioned"`
	WorkAuthorized bool   `json:"work_authorized"`
}

// ComplianceReportResponse 合规子报告
type ComplianceReportResponse struct {
	ConsultantID string           `json:"consultant_id"`
	Items        []ComplianceItem `json:"items"`
}

// ComplianceItem 单条合规项状态
type ComplianceItem struct {
	ItemType string `json:"item_type"`
	Status   string `json:"status"`
	DueAt    string `json:"due_at,omitempty"`
}
