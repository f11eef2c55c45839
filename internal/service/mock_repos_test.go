package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
	"github.com/MDx-Vision/nicehr-sub005/internal/repository"
	pkgerrors "github.com/MDx-Vision/nicehr-sub005/pkg/errors"
)

// ── Mock ConsultantRepository ──

type mockConsultantRepo struct {
	consultants map[string]*model.Consultant
}

func newMockConsultantRepo() *mockConsultantRepo {
	return &mockConsultantRepo{consultants: make(map[string]*model.Consultant)}
}

func (m *mockConsultantRepo) GetByID(_ context.Context, id string) (*model.Consultant, error) {
	if c, ok := m.consultants[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockConsultantRepo) List(_ context.Context) ([]model.Consultant, error) {
	ids := make([]string, 0, len(m.consultants))
	for id := range m.consultants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	result := make([]model.Consultant, 0, len(ids))
	for _, id := range ids {
		result = append(result, *m.consultants[id])
	}
	return result, nil
}

func (m *mockConsultantRepo) ListByIDs(_ context.Context, ids []string) ([]model.Consultant, error) {
	var result []model.Consultant
	for _, id := range ids {
		if c, ok := m.consultants[id]; ok {
			result = append(result, *c)
		}
	}
	return result, nil
}

// ── Mock ShiftRepository ──

type mockShiftRepo struct {
	shifts map[string]*model.Shift
}

func newMockShiftRepo() *mockShiftRepo {
	return &mockShiftRepo{shifts: make(map[string]*model.Shift)}
}

func (m *mockShiftRepo) GetByID(_ context.Context, id string) (*model.Shift, error) {
	if s, ok := m.shifts[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockShiftRepo) ListByIDs(_ context.Context, ids []string) ([]model.Shift, error) {
	var result []model.Shift
	for _, id := range ids {
		if s, ok := m.shifts[id]; ok {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *mockShiftRepo) ListBetween(_ context.Context, from, to time.Time) ([]model.Shift, error) {
	var result []model.Shift
	for _, s := range m.shifts {
		if !s.StartAt.Before(from) && s.StartAt.Before(to) {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result, nil
}

func (m *mockShiftRepo) UpdateStatus(_ context.Context, id, status string) error {
	s, ok := m.shifts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = status
	return nil
}

// ── Mock AssignmentBatchRepository ──

type mockBatchRepo struct {
	batches     map[string]*model.AssignmentBatch
	assignments *mockAssignmentRepo // GetByID 关联装配用
	seq         int
}

func newMockBatchRepo(assignments *mockAssignmentRepo) *mockBatchRepo {
	return &mockBatchRepo{
		batches:     make(map[string]*model.AssignmentBatch),
		assignments: assignments,
	}
}

func (m *mockBatchRepo) Create(_ context.Context, batch *model.AssignmentBatch) error {
	if batch.BatchID == "" {
		m.seq++
		batch.BatchID = fmt.Sprintf("batch-%d", m.seq)
	}
	if batch.Version == 0 {
		batch.Version = 1
	}
	batch.CreatedAt = time.Now()
	m.batches[batch.BatchID] = batch
	return nil
}

func (m *mockBatchRepo) GetByID(ctx context.Context, id string) (*model.AssignmentBatch, error) {
	if b, ok := m.batches[id]; ok {
		copied := *b
		copied.Assignments, _ = m.assignments.ListByBatch(ctx, id)
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBatchRepo) Update(_ context.Context, batch *model.AssignmentBatch) error {
	stored, ok := m.batches[batch.BatchID]
	if !ok || stored.Version != batch.Version {
		return pkgerrors.ErrOptimisticLock
	}
	batch.Version++
	copied := *batch
	m.batches[batch.BatchID] = &copied
	return nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	assignments map[string]*model.Assignment
	shifts      *mockShiftRepo // 关联装配用
	consultants *mockConsultantRepo
	seq         int
}

func newMockAssignmentRepo(shifts *mockShiftRepo, consultants *mockConsultantRepo) *mockAssignmentRepo {
	return &mockAssignmentRepo{
		assignments: make(map[string]*model.Assignment),
		shifts:      shifts,
		consultants: consultants,
	}
}

func (m *mockAssignmentRepo) hydrate(a *model.Assignment) *model.Assignment {
	copied := *a
	if s, ok := m.shifts.shifts[a.ShiftID]; ok {
		copied.Shift = s
	}
	if c, ok := m.consultants.consultants[a.ConsultantID]; ok {
		copied.Consultant = c
	}
	return &copied
}

func (m *mockAssignmentRepo) BatchCreate(_ context.Context, assignments []model.Assignment) error {
	for i := range assignments {
		if assignments[i].AssignmentID == "" {
			m.seq++
			assignments[i].AssignmentID = fmt.Sprintf("assign-%d", m.seq)
		}
		if assignments[i].Version == 0 {
			assignments[i].Version = 1
		}
		copied := assignments[i]
		m.assignments[copied.AssignmentID] = &copied
	}
	return nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		return m.hydrate(a), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) ListByBatch(_ context.Context, batchID string) ([]model.Assignment, error) {
	ids := make([]string, 0)
	for id, a := range m.assignments {
		if a.BatchID == batchID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	result := make([]model.Assignment, 0, len(ids))
	for _, id := range ids {
		result = append(result, *m.hydrate(m.assignments[id]))
	}
	return result, nil
}

func (m *mockAssignmentRepo) Update(_ context.Context, assignment *model.Assignment) error {
	stored, ok := m.assignments[assignment.AssignmentID]
	if !ok || stored.Version != assignment.Version {
		return pkgerrors.ErrOptimisticLock
	}
	assignment.Version++
	copied := *assignment
	copied.Shift = nil
	copied.Consultant = nil
	m.assignments[copied.AssignmentID] = &copied
	return nil
}

func (m *mockAssignmentRepo) ListConfirmedByConsultant(_ context.Context, consultantID string) ([]model.Assignment, error) {
	var result []model.Assignment
	for _, a := range m.assignments {
		if a.ConsultantID == consultantID && a.Status == model.AssignmentConfirmed {
			result = append(result, *m.hydrate(a))
		}
	}
	return result, nil
}

func (m *mockAssignmentRepo) CountConfirmedAtHospital(_ context.Context, consultantID, hospitalID string) (int64, error) {
	var count int64
	for _, a := range m.assignments {
		if a.ConsultantID != consultantID || a.Status != model.AssignmentConfirmed {
			continue
		}
		if s, ok := m.shifts.shifts[a.ShiftID]; ok && s.HospitalID == hospitalID {
			count++
		}
	}
	return count, nil
}

func (m *mockAssignmentRepo) CountConfirmedSince(_ context.Context, consultantID string, since time.Time) (int64, error) {
	var count int64
	for _, a := range m.assignments {
		if a.ConsultantID != consultantID || a.Status != model.AssignmentConfirmed {
			continue
		}
		if s, ok := m.shifts.shifts[a.ShiftID]; ok && !s.StartAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *mockAssignmentRepo) ListConfirmedBetween(_ context.Context, from, to time.Time) ([]model.Assignment, error) {
	var result []model.Assignment
	for _, a := range m.assignments {
		if a.Status != model.AssignmentConfirmed {
			continue
		}
		s, ok := m.shifts.shifts[a.ShiftID]
		if !ok {
			continue
		}
		if !s.StartAt.Before(from) && s.StartAt.Before(to) {
			result = append(result, *m.hydrate(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssignmentID < result[j].AssignmentID })
	return result, nil
}

// ── Mock LedgerRepository ──

type mockLedgerRepo struct {
	entries map[string]*model.CommittedHoursLedger // key: consultantID|weekStart
	seq     int
}

func newMockLedgerRepo() *mockLedgerRepo {
	return &mockLedgerRepo{entries: make(map[string]*model.CommittedHoursLedger)}
}

func ledgerKey(consultantID string, weekStart time.Time) string {
	return consultantID + "|" + weekStart.Format("2006-01-02")
}

func (m *mockLedgerRepo) Get(_ context.Context, consultantID string, weekStart time.Time) (*model.CommittedHoursLedger, error) {
	if e, ok := m.entries[ledgerKey(consultantID, weekStart)]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLedgerRepo) Create(_ context.Context, entry *model.CommittedHoursLedger) error {
	key := ledgerKey(entry.ConsultantID, entry.WeekStart)
	if _, exists := m.entries[key]; exists {
		return fmt.Errorf("账本唯一键冲突: %s", key)
	}
	if entry.LedgerID == "" {
		m.seq++
		entry.LedgerID = fmt.Sprintf("ledger-%d", m.seq)
	}
	copied := *entry
	m.entries[key] = &copied
	return nil
}

func (m *mockLedgerRepo) Update(_ context.Context, entry *model.CommittedHoursLedger) error {
	key := ledgerKey(entry.ConsultantID, entry.WeekStart)
	stored, ok := m.entries[key]
	if !ok || stored.Version != entry.Version {
		return pkgerrors.ErrOptimisticLock
	}
	entry.Version++
	copied := *entry
	m.entries[key] = &copied
	return nil
}

func (m *mockLedgerRepo) ListByConsultant(_ context.Context, consultantID string) ([]model.CommittedHoursLedger, error) {
	var result []model.CommittedHoursLedger
	for _, e := range m.entries {
		if e.ConsultantID == consultantID {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WeekStart.Before(result[j].WeekStart) })
	return result, nil
}

// ── Mock SchedulingConfigRepository ──

type mockConfigRepo struct {
	configs map[int]*model.SchedulingConfiguration
}

func newMockConfigRepo() *mockConfigRepo {
	return &mockConfigRepo{configs: make(map[int]*model.SchedulingConfiguration)}
}

func (m *mockConfigRepo) GetActive(_ context.Context) (*model.SchedulingConfiguration, error) {
	for _, c := range m.configs {
		if c.IsActive {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockConfigRepo) GetByVersion(_ context.Context, version int) (*model.SchedulingConfiguration, error) {
	if c, ok := m.configs[version]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockConfigRepo) List(_ context.Context, offset, limit int) ([]model.SchedulingConfiguration, int64, error) {
	versions := make([]int, 0, len(m.configs))
	for v := range m.configs {
		versions = append(versions, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))
	var result []model.SchedulingConfiguration
	for i, v := range versions {
		if i < offset {
			continue
		}
		if len(result) >= limit {
			break
		}
		result = append(result, *m.configs[v])
	}
	return result, int64(len(m.configs)), nil
}

func (m *mockConfigRepo) MaxVersion(_ context.Context) (int, error) {
	max := 0
	for v := range m.configs {
		if v > max {
			max = v
		}
	}
	return max, nil
}

func (m *mockConfigRepo) CreateActive(_ context.Context, cfg *model.SchedulingConfiguration) error {
	for _, c := range m.configs {
		c.IsActive = false
	}
	cfg.IsActive = true
	if cfg.ConfigID == "" {
		cfg.ConfigID = fmt.Sprintf("cfg-%d", cfg.Version)
	}
	cfg.CreatedAt = time.Now()
	m.configs[cfg.Version] = cfg
	return nil
}

// ── Mock AuditRepository ──

type mockAuditRepo struct {
	entries []model.AuditEntry
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{}
}

func (m *mockAuditRepo) Create(_ context.Context, entry *model.AuditEntry) error {
	entry.AuditID = fmt.Sprintf("audit-%d", len(m.entries)+1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditRepo) BatchCreate(ctx context.Context, entries []model.AuditEntry) error {
	for i := range entries {
		if err := m.Create(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAuditRepo) List(_ context.Context, category, refID string, offset, limit int) ([]model.AuditEntry, int64, error) {
	var filtered []model.AuditEntry
	for _, e := range m.entries {
		if category != "" && e.Category != category {
			continue
		}
		if refID != "" && (e.RefID == nil || *e.RefID != refID) {
			continue
		}
		filtered = append(filtered, e)
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

// byCategory 测试断言辅助：按类别过滤
func (m *mockAuditRepo) byCategory(category string) []model.AuditEntry {
	var result []model.AuditEntry
	for _, e := range m.entries {
		if e.Category == category {
			result = append(result, e)
		}
	}
	return result
}

// ── Mock OutboxRepository ──

type mockOutboxRepo struct {
	messages []model.OutboxMessage
}

func newMockOutboxRepo() *mockOutboxRepo {
	return &mockOutboxRepo{}
}

func (m *mockOutboxRepo) Create(_ context.Context, msg *model.OutboxMessage) error {
	msg.MessageID = fmt.Sprintf("msg-%d", len(m.messages)+1)
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *mockOutboxRepo) BatchCreate(ctx context.Context, msgs []model.OutboxMessage) error {
	for i := range msgs {
		if err := m.Create(ctx, &msgs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockOutboxRepo) ListDue(_ context.Context, now time.Time, limit int) ([]model.OutboxMessage, error) {
	var result []model.OutboxMessage
	for _, msg := range m.messages {
		if msg.Status == model.OutboxPending && !msg.NextAttemptAt.After(now) {
			result = append(result, msg)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *mockOutboxRepo) Update(_ context.Context, msg *model.OutboxMessage) error {
	for i := range m.messages {
		if m.messages[i].MessageID == msg.MessageID {
			m.messages[i] = *msg
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── 聚合装配 ──

// testRepos 聚合所有 mock repo 便于 seed 数据
type testRepos struct {
	consultant *mockConsultantRepo
	shift      *mockShiftRepo
	batch      *mockBatchRepo
	assignment *mockAssignmentRepo
	ledger     *mockLedgerRepo
	config     *mockConfigRepo
	audit      *mockAuditRepo
	outbox     *mockOutboxRepo
}

func newTestRepos() *testRepos {
	consultant := newMockConsultantRepo()
	shift := newMockShiftRepo()
	assignment := newMockAssignmentRepo(shift, consultant)
	return &testRepos{
		consultant: consultant,
		shift:      shift,
		batch:      newMockBatchRepo(assignment),
		assignment: assignment,
		ledger:     newMockLedgerRepo(),
		config:     newMockConfigRepo(),
		audit:      newMockAuditRepo(),
		outbox:     newMockOutboxRepo(),
	}
}

func (r *testRepos) toRepository() *repository.Repository {
	return &repository.Repository{
		Consultant: r.consultant,
		Shift:      r.shift,
		Batch:      r.batch,
		Assignment: r.assignment,
		Ledger:     r.ledger,
		Config:     r.config,
		Audit:      r.audit,
		Outbox:     r.outbox,
	}
}
