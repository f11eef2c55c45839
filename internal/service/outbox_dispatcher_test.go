package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MDx-Vision/nicehr-sub005/config"
	"github.com/MDx-Vision/nicehr-sub005/internal/client"
	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

func setupTestDispatcher(notifyURL, calendarURL string) (*OutboxDispatcher, *testRepos) {
	repos := newTestRepos()
	cfg := &config.CollaboratorsConfig{
		NotifyURL:      notifyURL,
		CalendarURL:    calendarURL,
		CallTimeout:    2 * time.Second,
		OutboxInterval: time.Second,
		OutboxMaxRetry: 3,
	}
	d := NewOutboxDispatcher(
		repos.toRepository(),
		client.NewNotifyClient(notifyURL, cfg.CallTimeout),
		client.NewCalendarClient(calendarURL, cfg.CallTimeout),
		cfg,
		zap.NewNop(),
	)
	return d, repos
}

func seedOutboxMessage(repos *testRepos, channel string) *model.OutboxMessage {
	msg := &model.OutboxMessage{
		Channel: channel,
		Payload: model.JSONMap{
			"assignment_id": "assign-1",
			"batch_id":      "batch-1",
			"shift_id":      "shift-1",
			"consultant_id": "cons-1",
			"event":         "assignment_confirmed",
			"start_at":      "2026-03-03T08:00:00Z",
			"end_at":        "2026-03-03T16:00:00Z",
		},
		Status:        model.OutboxPending,
		NextAttemptAt: time.Now().UTC().Add(-time.Minute),
	}
	_ = repos.outbox.Create(context.Background(), msg)
	return msg
}

func TestDispatchDue_双通道投递成功(t *testing.T) {
	var notifyHits, calendarHits int
	notifySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		notifyHits++
		w.WriteHeader(http.StatusAccepted)
	}))
	defer notifySrv.Close()
	calendarSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calendarHits++
		if ct := r.Header.Get("Content-Type"); ct != "text/calendar" {
			t.Errorf("期望 text/calendar 请求，实际: %s", ct)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer calendarSrv.Close()

	d, repos := setupTestDispatcher(notifySrv.URL, calendarSrv.URL)
	seedOutboxMessage(repos, model.ChannelNotification)
	seedOutboxMessage(repos, model.ChannelCalendar)

	d.DispatchDue(context.Background())

	if notifyHits != 1 || calendarHits != 1 {
		t.Errorf("期望通知/日历各投递 1 次，实际: %d/%d", notifyHits, calendarHits)
	}
	for _, msg := range repos.outbox.messages {
		if msg.Status != model.OutboxDelivered {
			t.Errorf("期望消息 %s 为 delivered，实际: %s", msg.MessageID, msg.Status)
		}
		if msg.Attempts != 1 {
			t.Errorf("期望尝试次数 1，实际: %d", msg.Attempts)
		}
	}
}

func TestDispatchDue_失败退避重排(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d, repos := setupTestDispatcher(srv.URL, srv.URL)
	seedOutboxMessage(repos, model.ChannelNotification)

	before := time.Now().UTC()
	d.DispatchDue(context.Background())

	msg := repos.outbox.messages[0]
	if msg.Status != model.OutboxPending {
		t.Errorf("首次失败后期望仍为 pending，实际: %s", msg.Status)
	}
	if msg.Attempts != 1 {
		t.Errorf("期望尝试次数 1，实际: %d", msg.Attempts)
	}
	if msg.LastError == nil {
		t.Error("期望记录最近错误")
	}
	if !msg.NextAttemptAt.After(before) {
		t.Errorf("期望下次尝试时间后移，实际: %v", msg.NextAttemptAt)
	}
}

func TestDispatchDue_重试耗尽标记失败(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d, repos := setupTestDispatcher(srv.URL, srv.URL)
	msg := seedOutboxMessage(repos, model.ChannelNotification)
	msg.Attempts = 2 // 下一次即达上限 3
	_ = repos.outbox.Update(context.Background(), msg)

	d.DispatchDue(context.Background())

	stored := repos.outbox.messages[0]
	if stored.Status != model.OutboxFailed {
		t.Errorf("期望重试耗尽后为 failed，实际: %s", stored.Status)
	}
	if stored.Attempts != 3 {
		t.Errorf("期望尝试次数 3，实际: %d", stored.Attempts)
	}

	// failed 消息不再被拾取
	d.DispatchDue(context.Background())
	if repos.outbox.messages[0].Attempts != 3 {
		t.Errorf("failed 消息不应再投递，实际尝试次数: %d", repos.outbox.messages[0].Attempts)
	}
}

func TestDispatchDue_未到期消息不投递(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, repos := setupTestDispatcher(srv.URL, srv.URL)
	msg := seedOutboxMessage(repos, model.ChannelNotification)
	msg.NextAttemptAt = time.Now().UTC().Add(time.Hour)
	_ = repos.outbox.Update(context.Background(), msg)

	d.DispatchDue(context.Background())
	if hits != 0 {
		t.Errorf("未到期消息不应投递，实际命中: %d", hits)
	}
}
