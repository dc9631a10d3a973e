package identity

import (
	"context"
	"fmt"

	"github.com/langchou/chargehive/internal/api/upstream"
)

// ServiceName 身份服务的逻辑名
const ServiceName = "auth-service"

// User 身份服务返回的用户
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Client 身份服务客户端
// 每次校验都是一次新的远程调用，不缓存结果
type Client struct {
	caller *upstream.Caller
}

// NewClient 创建身份服务客户端
func NewClient(caller *upstream.Caller) *Client {
	return &Client{caller: caller}
}

// GetUser 按 ID 查询用户
// 错误包装 upstream.ErrNotFound 或 upstream.ErrUnavailable，可用 upstream.Classify 归类
func (c *Client) GetUser(ctx context.Context, userID int64) (*User, error) {
	var user *User
	if err := c.caller.GetJSON(ctx, fmt.Sprintf("/auth/get-by-id/%d", userID), &user); err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	// 200 但没有用户数据时视为不存在
	if user == nil || user.ID == 0 {
		return nil, fmt.Errorf("get user %d: %w: empty user body", userID, upstream.ErrNotFound)
	}
	return user, nil
}
