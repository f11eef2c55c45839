package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

// CalendarClient 外部日历服务客户端。
// 指派事件以 iCalendar 格式投递，撤销事件投递 CANCELLED 状态。
type CalendarClient struct {
	baseURL string
	http    *http.Client
}

// NewCalendarClient 创建日历客户端
func NewCalendarClient(baseURL string, timeout time.Duration) *CalendarClient {
	return &CalendarClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Push 把指派事件转为 ICS 后投递日历服务
func (c *CalendarClient) Push(ctx context.Context, payload model.JSONMap) error {
	ical, err := buildICS(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/events", bytes.NewReader([]byte(ical)))
	if err != nil {
		return fmt.Errorf("构造日历请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "text/calendar")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("日历服务调用失败: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("日历服务返回状态 %d", resp.StatusCode)
	}
	return nil
}

func buildICS(payload model.JSONMap) (string, error) {
	assignmentID, _ := payload["assignment_id"].(string)
	if assignmentID == "" {
		return "", fmt.Errorf("日历事件缺少 assignment_id")
	}
	event, _ := payload["event"].(string)
	shiftID, _ := payload["shift_id"].(string)
	consultantID, _ := payload["consultant_id"].(string)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId("-//nicehr//scheduling-engine//CN")

	ev := cal.AddEvent(assignmentID)
	ev.SetDtStampTime(time.Now().UTC())
	ev.SetSummary(fmt.Sprintf("班次指派 %s", shiftID))
	ev.SetDescription(fmt.Sprintf("顾问 %s 的班次指派", consultantID))
	if event == "assignment_rolled_back" {
		cal.SetMethod(ics.MethodCancel)
		ev.SetStatus(ics.ObjectStatusCancelled)
	} else {
		ev.SetStatus(ics.ObjectStatusConfirmed)
	}

	if startStr, ok := payload["start_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			ev.SetStartAt(t)
		}
	}
	if endStr, ok := payload["end_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			ev.SetEndAt(t)
		}
	}

	return cal.Serialize(), nil
}
