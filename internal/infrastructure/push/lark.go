package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/docflow/internal/application/port"
	"github.com/garyjia/docflow/internal/domain/entity"
)

// LarkConfig holds the Lark app credentials used for IM delivery
type LarkConfig struct {
	AppID     string
	AppSecret string
	// ReceiveIDType tells Lark how to read the user id: user_id, open_id, union_id or email
	ReceiveIDType string
	// BaseURL overrides the open platform endpoint
	BaseURL string
}

// LarkPusher delivers notifications as Lark IM text messages
type LarkPusher struct {
	client        *lark.Client
	receiveIDType string
	logger        *zap.Logger
}

// NewLarkPusher creates a Lark IM pusher
func NewLarkPusher(cfg LarkConfig, logger *zap.Logger) *LarkPusher {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = "user_id"
	}

	return &LarkPusher{
		client:        lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		receiveIDType: idType,
		logger:        logger,
	}
}

// Push sends payload to userID as a text message
func (p *LarkPusher) Push(ctx context.Context, userID string, payload interface{}) error {
	if userID == "" {
		return fmt.Errorf("lark push: user id is required")
	}

	content, err := textContent(payload)
	if err != nil {
		return err
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(p.receiveIDType).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(userID).
			MsgType(larkIm.MsgTypeText).
			Content(content).
			Build()).
		Build()

	resp, err := p.client.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("lark push: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("lark push: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	if resp.Data != nil && resp.Data.MessageId != nil {
		p.logger.Debug("Lark message sent",
			zap.String("user_id", userID),
			zap.String("message_id", *resp.Data.MessageId))
	}
	return nil
}

// textContent renders payload into the Lark text message body
func textContent(payload interface{}) (string, error) {
	var text string
	switch v := payload.(type) {
	case *entity.Notification:
		text = v.Title
		if v.Message != "" {
			text = strings.TrimSpace(text + "\n" + v.Message)
		}
	case string:
		text = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("lark push: encode payload: %w", err)
		}
		text = string(b)
	}
	if text == "" {
		return "", fmt.Errorf("lark push: empty message")
	}

	b, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("lark push: encode content: %w", err)
	}
	return string(b), nil
}

var _ port.Pusher = (*LarkPusher)(nil)
