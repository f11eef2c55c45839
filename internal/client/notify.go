package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MDx-Vision/nicehr-sub005/internal/model"
)

// NotifyClient 外部通知服务客户端
type NotifyClient struct {
	baseURL string
	http    *http.Client
}

// NewNotifyClient 创建通知客户端
func NewNotifyClient(baseURL string, timeout time.Duration) *NotifyClient {
	return &NotifyClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Send 投递一条通知事件；非 2xx 一律视为失败交由发件箱重试
func (c *NotifyClient) Send(ctx context.Context, payload model.JSONMap) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("通知载荷序列化失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("构造通知请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("通知服务调用失败: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("通知服务返回状态 %d", resp.StatusCode)
	}
	return nil
}
