package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/MDx-Vision/nicehr-sub005/internal/dto"
	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	"github.com/MDx-Vision/nicehr-sub005/internal/service"
	pkgerrors "github.com/MDx-Vision/nicehr-sub005/pkg/errors"
	"github.com/MDx-Vision/nicehr-sub005/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testShiftID      = "11111111-1111-1111-1111-111111111111"
	testConsultantID = "22222222-2222-2222-2222-222222222222"
	testBatchID      = "33333333-3333-3333-3333-333333333333"
)

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock ScoringService ──

type mockScoringService struct {
	recommendResult []dto.CandidateScoreResponse
	recommendErr    error
	explainResult   *dto.CandidateScoreResponse
	explainErr      error
}

func (m *mockScoringService) Recommend(_ context.Context, _ *dto.RecommendationsRequest) ([]dto.CandidateScoreResponse, error) {
	return m.recommendResult, m.recommendErr
}
func (m *mockScoringService) Explain(_ context.Context, _ *dto.ExplainRequest) (*dto.CandidateScoreResponse, error) {
	return m.explainResult, m.explainErr
}
func (m *mockScoringService) ScoreCandidates(_ context.Context, _ *model.Shift, _ []*model.Consultant, _ *model.SchedulingConfiguration, _ *service.BatchContext) ([]service.CandidateScore, error) {
	return nil, nil
}

// ── Mock AutoAssignService ──

type mockAutoAssignService struct {
	validateResult *dto.ValidatePreviewResponse
	validateErr    error
	proposeResult  *dto.BatchResponse
	proposeErr     error
	confirmResult  *dto.BatchResponse
	confirmErr     error
	undoResult     *dto.BatchResponse
	undoErr        error
	cancelResult   *dto.BatchResponse
	cancelErr      error
	overrideResult *dto.AssignmentResponse
	overrideErr    error
	getResult      *dto.BatchResponse
	getErr         error
}

func (m *mockAutoAssignService) Validate(_ context.Context, _ *dto.ValidateBatchRequest) (*dto.ValidatePreviewResponse, error) {
	return m.validateResult, m.validateErr
}
func (m *mockAutoAssignService) Propose(_ context.Context, _ string, _ *dto.AutoAssignRequest) (*dto.BatchResponse, error) {
	return m.proposeResult, m.proposeErr
}
func (m *mockAutoAssignService) Confirm(_ context.Context, _, _ string) (*dto.BatchResponse, error) {
	return m.confirmResult, m.confirmErr
}
func (m *mockAutoAssignService) Undo(_ context.Context, _, _ string) (*dto.BatchResponse, error) {
	return m.undoResult, m.undoErr
}
func (m *mockAutoAssignService) Cancel(_ context.Context, _, _ string) (*dto.BatchResponse, error) {
	return m.cancelResult, m.cancelErr
}
func (m *mockAutoAssignService) Override(_ context.Context, _ string, _ *dto.OverrideAssignRequest) (*dto.AssignmentResponse, error) {
	return m.overrideResult, m.overrideErr
}
func (m *mockAutoAssignService) GetBatch(_ context.Context, _ string) (*dto.BatchResponse, error) {
	return m.getResult, m.getErr
}

// ── Mock EligibilityService ──

type mockEligibilityService struct {
	checkResult      *dto.EligibilityResponse
	checkErr         error
	invalidateErr    error
	certsResult      *dto.CertificationReportResponse
	certsErr         error
	licensesResult   *dto.LicenseReportResponse
	licensesErr      error
	backgroundResult *dto.BackgroundReportResponse
	backgroundErr    error
	complianceResult *dto.ComplianceReportResponse
	complianceErr    error
}

func (m *mockEligibilityService) Check(_ context.Context, _, _ string) (*dto.EligibilityResponse, error) {
	return m.checkResult, m.checkErr
}
func (m *mockEligibilityService) CheckForShift(_ context.Context, _ *model.Consultant, _ *model.Shift, _ *model.Hospital) (*service.EligibilityResult, error) {
	return nil, nil
}
func (m *mockEligibilityService) Invalidate(_ context.Context, _ string) error {
	return m.invalidateErr
}
func (m *mockEligibilityService) CertificationReport(_ context.Context, _ string) (*dto.CertificationReportResponse, error) {
	return m.certsResult, m.certsErr
}
func (m *mockEligibilityService) LicenseReport(_ context.Context, _ string) (*dto.LicenseReportResponse, error) {
	return m.licensesResult, m.licensesErr
}
func (m *mockEligibilityService) BackgroundReport(_ context.Context, _ string) (*dto.BackgroundReportResponse, error) {
	return m.backgroundResult, m.backgroundErr
}
func (m *mockEligibilityService) ComplianceReport(_ context.Context, _ string) (*dto.ComplianceReportResponse, error) {
	return m.complianceResult, m.complianceErr
}

// ── Mock ConfigService ──

type mockConfigService struct {
	saveResult     *dto.ConfigResponse
	saveErr        error
	rollbackResult *dto.ConfigResponse
	rollbackErr    error
	activeResult   *dto.ConfigResponse
	activeErr      error
	historyResult  []dto.ConfigResponse
	historyTotal   int64
	historyErr     error
}

func (m *mockConfigService) Save(_ context.Context, _ string, _ *dto.SaveConfigRequest) (*dto.ConfigResponse, error) {
	return m.saveResult, m.saveErr
}
func (m *mockConfigService) Rollback(_ context.Context, _ string, _ *dto.RollbackConfigRequest) (*dto.ConfigResponse, error) {
	return m.rollbackResult, m.rollbackErr
}
func (m *mockConfigService) GetActive(_ context.Context) (*dto.ConfigResponse, error) {
	return m.activeResult, m.activeErr
}
func (m *mockConfigService) History(_ context.Context, _ *dto.PaginationRequest) ([]dto.ConfigResponse, int64, error) {
	return m.historyResult, m.historyTotal, m.historyErr
}
func (m *mockConfigService) ActiveModel(_ context.Context) (*model.SchedulingConfiguration, error) {
	return nil, nil
}

// ── Mock AuditService ──

type mockAuditService struct {
	listResult []dto.AuditEntryResponse
	listTotal  int64
	listErr    error
}

func (m *mockAuditService) List(_ context.Context, _ *dto.AuditListRequest) ([]dto.AuditEntryResponse, int64, error) {
	return m.listResult, m.listTotal, m.listErr
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) AssignmentsXLSX(_ context.Context, _ *dto.ExportAssignmentsRequest) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setupGin() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

func setAuth(c *gin.Context) {
	c.Set("user_id", "test-user-id")
	c.Set("role", "admin")
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// ═══════════════════════════════════════════════════════════
// SchedulingHandler Tests
// ═══════════════════════════════════════════════════════════

func TestSchedulingHandler_Recommendations_Success(t *testing.T) {
	mock := &mockScoringService{
		recommendResult: []dto.CandidateScoreResponse{
			{ConsultantID: testConsultantID, TotalScore: 86.5},
		},
	}
	h := NewSchedulingHandler(mock, &mockAutoAssignService{})

	w := setupGin()
	req := httptest.NewRequest("GET", "/scheduling/recommendations?shift_id="+testShiftID, nil)

	r := gin.New()
	r.GET("/scheduling/recommendations", h.Recommendations)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
}

func TestSchedulingHandler_Recommendations_MissingShiftID(t *testing.T) {
	h := NewSchedulingHandler(&mockScoringService{}, &mockAutoAssignService{})

	w := setupGin()
	req := httptest.NewRequest("GET", "/scheduling/recommendations", nil)

	r := gin.New()
	r.GET("/scheduling/recommendations", h.Recommendations)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSchedulingHandler_Explain_ShiftNotFound(t *testing.T) {
	mock := &mockScoringService{explainErr: service.ErrShiftNotFound}
	h := NewSchedulingHandler(mock, &mockAutoAssignService{})

	w := setupGin()
	req := httptest.NewRequest("GET", "/scheduling/explain?shift_id="+testShiftID+"&consultant_id="+testConsultantID, nil)

	r := gin.New()
	r.GET("/scheduling/explain", h.Explain)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 13101 {
		t.Errorf("expected error code 13101, got %d", resp.Code)
	}
}

func TestSchedulingHandler_AutoAssign_Success(t *testing.T) {
	mock := &mockAutoAssignService{
		proposeResult: &dto.BatchResponse{
			BatchID: testBatchID,
			Mode:    model.ModeBestEffort,
			Status:  model.BatchValidating,
		},
	}
	h := NewSchedulingHandler(&mockScoringService{}, mock)

	w := setupGin()
	req := httptest.NewRequest("POST", "/scheduling/auto-assign", jsonBody(dto.AutoAssignRequest{
		Mode:   model.ModeBestEffort,
		Shifts: []dto.ShiftRequest{{ShiftID: testShiftID}},
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/scheduling/auto-assign", func(c *gin.Context) {
		setAuth(c)
		h.AutoAssign(c)
	})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestSchedulingHandler_AutoAssign_BadJSON(t *testing.T) {
	h := NewSchedulingHandler(&mockScoringService{}, &mockAutoAssignService{})

	w := setupGin()
	req := httptest.NewRequest("POST", "/scheduling/auto-assign", bytes.NewReader([]byte("bad")))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/scheduling/auto-assign", func(c *gin.Context) {
		setAuth(c)
		h.AutoAssign(c)
	})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSchedulingHandler_AutoAssign_Unauthenticated(t *testing.T) {
	h := NewSchedulingHandler(&mockScoringService{}, &mockAutoAssignService{})

	w := setupGin()
	req := httptest.NewRequest("POST", "/scheduling/auto-assign", jsonBody(dto.AutoAssignRequest{
		Mode:   model.ModeBestEffort,
		Shifts: []dto.ShiftRequest{{ShiftID: testShiftID}},
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/scheduling/auto-assign", h.AutoAssign)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestSchedulingHandler_Confirm_PartiallyApplied(t *testing.T) {
	mock := &mockAutoAssignService{
		confirmResult: &dto.BatchResponse{
			BatchID: testBatchID,
			Mode:    model.ModeBestEffort,
			Status:  model.BatchPartiallyApplied,
		},
	}
	h := NewSchedulingHandler(&mockScoringService{}, mock)

	w := setupGin()
	req := httptest.NewRequest("POST", "/scheduling/batches/confirm", jsonBody(dto.ConfirmBatchRequest{
		BatchID: testBatchID,
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/scheduling/batches/confirm", func(c *gin.Context) {
		setAuth(c)
		h.Confirm(c)
	})
	r.ServeHTTP(w, req)

	// 部分成交 → 207
	if w.Code != http.StatusMultiStatus {
		t.Errorf("expected 207, got %d", w.Code)
	}
}

func TestSchedulingHandler_Confirm_RolledBackBatch(t *testing.T) {
	mock := &mockAutoAssignService{confirmErr: service.ErrBatchFailed}
	h := NewSchedulingHandler(&mockScoringService{}, mock)

	w := setupGin()
	req := httptest.NewRequest("POST", "/scheduling/batches/confirm", jsonBody(dto.ConfirmBatchRequest{
		BatchID: testBatchID,
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/scheduling/batches/confirm", func(c *gin.Context) {
		setAuth(c)
		h.Confirm(c)
	})
	r.ServeHTTP(w, req)

	// 整批回滚 → 500 + 回滚确认码
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 13201 {
		t.Errorf("expected error code 13201, got %d", resp.Code)
	}
}

func TestSchedulingHandler_Override_Created(t *testing.T) {
	mock := &mockAutoAssignService{
		overrideResult: &dto.AssignmentResponse{
			AssignmentID: "44444444-4444-4444-4444-444444444444",
			Status:       model.AssignmentConfirmed,
			Overridden:   true,
		},
	}
	h := NewSchedulingHandler(&mockScoringService{}, mock)

	w := setupGin()
	req := httptest.NewRequest("POST", "/scheduling/override", jsonBody(dto.OverrideAssignRequest{
		ShiftID:      testShiftID,
		ConsultantID: testConsultantID,
		Rule:         "weekly_overtime",
		Reason:       "夜班紧急缺人",
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/scheduling/override", func(c *gin.Context) {
		setAuth(c)
		h.Override(c)
	})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

func TestSchedulingHandler_GetBatch_NotFound(t *testing.T) {
	mock := &mockAutoAssignService{getErr: service.ErrBatchNotFound}
	h := NewSchedulingHandler(&mockScoringService{}, mock)

	w := setupGin()
	req := httptest.NewRequest("GET", "/scheduling/batches/"+testBatchID, nil)

	r := gin.New()
	r.GET("/scheduling/batches/:id", h.GetBatch)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 13103 {
		t.Errorf("expected error code 13103, got %d", resp.Code)
	}
}

func TestSchedulingHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"ShiftNotFound", service.ErrShiftNotFound, 404, 13101},
		{"ConsultantNotFound", service.ErrConsultantNotFound, 404, 13102},
		{"BatchNotFound", service.ErrBatchNotFound, 404, 13103},
		{"NotConfirmable", service.ErrBatchNotConfirmable, 400, 13104},
		{"NotCancelable", service.ErrBatchNotCancelable, 400, 13105},
		{"NotUndoable", service.ErrBatchNotUndoable, 400, 13106},
		{"UndoExpired", service.ErrUndoWindowExpired, 400, 13107},
		{"Ineligible", service.ErrCandidateIneligible, 400, 13108},
		{"NotOverridable", service.ErrRuleNotOverridable, 400, 13109},
		{"StillBlocked", service.ErrOverrideStillBlocked, 409, 13110},
		{"BatchFailed", service.ErrBatchFailed, 500, 13201},
		{"OptimisticLock", pkgerrors.ErrOptimisticLock, 409, 13111},
		{"InternalError", errors.New("unknown"), 500, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockAutoAssignService{getErr: tt.err}
			h := NewSchedulingHandler(&mockScoringService{}, mock)

			w := setupGin()
			req := httptest.NewRequest("GET", "/scheduling/batches/"+testBatchID, nil)

			r := gin.New()
			r.GET("/scheduling/batches/:id", h.GetBatch)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			resp := parseResponse(w)
			if resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// EligibilityHandler Tests
// ═══════════════════════════════════════════════════════════

func TestEligibilityHandler_Check_Success(t *testing.T) {
	mock := &mockEligibilityService{
		checkResult: &dto.EligibilityResponse{
			ConsultantID: testConsultantID,
			Eligible:     true,
		},
	}
	h := NewEligibilityHandler(mock)

	w := setupGin()
	req := httptest.NewRequest("GET", "/eligibility/consultants/"+testConsultantID, nil)

	r := gin.New()
	r.GET("/eligibility/consultants/:id", h.Check)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestEligibilityHandler_Check_ConsultantNotFound(t *testing.T) {
	mock := &mockEligibilityService{checkErr: service.ErrConsultantNotFound}
	h := NewEligibilityHandler(mock)

	w := setupGin()
	req := httptest.NewRequest("GET", "/eligibility/consultants/"+testConsultantID, nil)

	r := gin.New()
	r.GET("/eligibility/consultants/:id", h.Check)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 12101 {
		t.Errorf("expected error code 12101, got %d", resp.Code)
	}
}

func TestEligibilityHandler_Invalidate_Success(t *testing.T) {
	mock := &mockEligibilityService{}
	h := NewEligibilityHandler(mock)

	w := setupGin()
	req := httptest.NewRequest("POST", "/eligibility/consultants/"+testConsultantID+"/invalidate", nil)

	r := gin.New()
	r.POST("/eligibility/consultants/:id/invalidate", h.Invalidate)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ConfigHandler Tests
// ═══════════════════════════════════════════════════════════

func validConfigBody() dto.SaveConfigRequest {
	return dto.SaveConfigRequest{
		Weights: map[string]float64{
			"skill_match":          0.25,
			"availability":         0.20,
			"cost":                 0.15,
			"hospital_familiarity": 0.10,
			"ehr_expertise":        0.10,
			"reliability":          0.10,
			"proximity":            0.05,
			"fairness":             0.05,
		},
		Constraints: dto.ConstraintSetRequest{
			MaxWeeklyHours:     40,
			MinRestHours:       8,
			MaxConsecutiveDays: 6,
		},
	}
}

func TestConfigHandler_Save_Created(t *testing.T) {
	mock := &mockConfigService{
		saveResult: &dto.ConfigResponse{Version: 2, IsActive: true},
	}
	h := NewConfigHandler(mock)

	w := setupGin()
	req := httptest.NewRequest("PUT", "/scheduling/config", jsonBody(validConfigBody()))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.PUT("/scheduling/config", func(c *gin.Context) {
		setAuth(c)
		h.Save(c)
	})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

func TestConfigHandler_Save_WeightsInvalid(t *testing.T) {
	mock := &mockConfigService{saveErr: service.ErrWeightsSumInvalid}
	h := NewConfigHandler(mock)

	w := setupGin()
	req := httptest.NewRequest("PUT", "/scheduling/config", jsonBody(validConfigBody()))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.PUT("/scheduling/config", func(c *gin.Context) {
		setAuth(c)
		h.Save(c)
	})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 14101 {
		t.Errorf("expected error code 14101, got %d", resp.Code)
	}
}

func TestConfigHandler_Rollback_VersionNotFound(t *testing.T) {
	mock := &mockConfigService{rollbackErr: service.ErrConfigVersionNotFound}
	h := NewConfigHandler(mock)

	w := setupGin()
	req := httptest.NewRequest("POST", "/scheduling/config/rollback", jsonBody(dto.RollbackConfigRequest{
		ToVersion: 9,
	}))
	req.Header.Set("Content-Type", "application/json")

	r := gin.New()
	r.POST("/scheduling/config/rollback", func(c *gin.Context) {
		setAuth(c)
		h.Rollback(c)
	})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 14104 {
		t.Errorf("expected error code 14104, got %d", resp.Code)
	}
}

func TestConfigHandler_GetActive_Success(t *testing.T) {
	mock := &mockConfigService{
		activeResult: &dto.ConfigResponse{Version: 1, IsActive: true},
	}
	h := NewConfigHandler(mock)

	w := setupGin()
	req := httptest.NewRequest("GET", "/scheduling/config", nil)

	r := gin.New()
	r.GET("/scheduling/config", h.GetActive)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// AuditHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuditHandler_List_Success(t *testing.T) {
	mock := &mockAuditService{
		listResult: []dto.AuditEntryResponse{{AuditID: "audit-1", Category: "batch"}},
		listTotal:  1,
	}
	h := NewAuditHandler(mock)

	w := setupGin()
	req := httptest.NewRequest("GET", "/audit?category=batch", nil)

	r := gin.New()
	r.GET("/audit", h.List)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAuditHandler_List_BadCategory(t *testing.T) {
	h := NewAuditHandler(&mockAuditService{})

	w := setupGin()
	req := httptest.NewRequest("GET", "/audit?category=nonsense", nil)

	r := gin.New()
	r.GET("/audit", h.List)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_Success(t *testing.T) {
	mock := &mockExportService{
		buf:      bytes.NewBufferString("xlsx content"),
		filename: "assignments_2026-03-02_2026-03-08.xlsx",
	}
	h := NewExportHandler(mock)

	w := setupGin()
	req := httptest.NewRequest("GET", "/export/assignments?from=2026-03-02&to=2026-03-08", nil)

	r := gin.New()
	r.GET("/export/assignments", h.Assignments)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("unexpected content type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("expected Content-Disposition header")
	}
}

func TestExportHandler_MissingRange(t *testing.T) {
	h := NewExportHandler(&mockExportService{})

	w := setupGin()
	req := httptest.NewRequest("GET", "/export/assignments", nil)

	r := gin.New()
	r.GET("/export/assignments", h.Assignments)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestExportHandler_RangeInvalid(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrExportRangeInvalid})

	w := setupGin()
	req := httptest.NewRequest("GET", "/export/assignments?from=2026-03-08&to=2026-03-02", nil)

	r := gin.New()
	r.GET("/export/assignments", h.Assignments)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 16101 {
		t.Errorf("expected error code 16101, got %d", resp.Code)
	}
}
