package service

import (
	"sync"
	"time"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

// proposedSlot 批内已占用的时间片
type proposedSlot struct {
	ShiftID string
	StartAt time.Time
	EndAt   time.Time
}

// BatchContext 单批次的内存竞技场。
// 批内冲突检测与公平计数在这里进行，不写任何共享包级状态；
// 批次结束后整个对象被丢弃，批与批之间互不可见。
type BatchContext struct {
	mu sync.RWMutex

	// consultantID → 批内已提议的班次时间片
	proposals map[string][]proposedSlot
	// consultantID → 周一日期 → 批内新增工时
	hoursDelta map[string]map[time.Time]float64
	// consultantID → 批内获得的指派数（公平因子的批内修正）
	assignCount map[string]int
}

// NewBatchContext 创建空竞技场
func NewBatchContext() *BatchContext {
	return &BatchContext{
		proposals:   make(map[string][]proposedSlot),
		hoursDelta:  make(map[string]map[time.Time]float64),
		assignCount: make(map[string]int),
	}
}

// Conflicts 判断该顾问在批内是否已有与给定区间重叠的提议
func (b *BatchContext) Conflicts(consultantID string, startAt, endAt time.Time) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, slot := range b.proposals[consultantID] {
		if model.Overlaps(slot.StartAt, slot.EndAt, startAt, endAt) {
			return true
		}
	}
	return false
}

// Commit 记录一条批内提议
func (b *BatchContext) Commit(consultantID string, shift *model.Shift) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.proposals[consultantID] = append(b.proposals[consultantID], proposedSlot{
		ShiftID: shift.ShiftID,
		StartAt: shift.StartAt,
		EndAt:   shift.EndAt,
	})
	week := shift.WeekStart()
	if b.hoursDelta[consultantID] == nil {
		b.hoursDelta[consultantID] = make(map[time.Time]float64)
	}
	b.hoursDelta[consultantID][week] += shift.Hours()
	b.assignCount[consultantID]++
}

// Release 回退一条批内提议（重排阶段把班次从候选人手里挪走时用）
func (b *BatchContext) Release(consultantID string, shift *model.Shift) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slots := b.proposals[consultantID]
	for i, slot := range slots {
		if slot.ShiftID == shift.ShiftID {
			b.proposals[consultantID] = append(slots[:i], slots[i+1:]...)
			break
		}
	}
	week := shift.WeekStart()
	if weeks := b.hoursDelta[consultantID]; weeks != nil {
		weeks[week] -= shift.Hours()
		if weeks[week] <= 0 {
			delete(weeks, week)
		}
	}
	if b.assignCount[consultantID] > 0 {
		b.assignCount[consultantID]--
	}
}

// HoursDelta 批内已为该顾问在指定周累计的新增工时
func (b *BatchContext) HoursDelta(consultantID string, weekStart time.Time) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if weeks := b.hoursDelta[consultantID]; weeks != nil {
		return weeks[weekStart]
	}
	return 0
}

// AssignCount 批内该顾问已获得的指派数
func (b *BatchContext) AssignCount(consultantID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.assignCount[consultantID]
}

// Slots 该顾问批内全部提议时间片的副本
func (b *BatchContext) Slots(consultantID string) []proposedSlot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]proposedSlot, len(b.proposals[consultantID]))
	copy(out, b.proposals[consultantID])
	return out
}
