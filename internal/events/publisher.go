// Package events は投稿の変更イベントをメッセージブローカーへ発行する。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hitoshi/blogman/internal/model"
)

// Publisher は投稿イベントの発行先インターフェース。
type Publisher interface {
	Publish(ctx context.Context, event model.PostEvent) error
}

// NoopPublisher はイベントを発行しないPublisher。
// NATS_URLが設定されていない環境で使用する。
type NoopPublisher struct{}

// Publish は何もしない。
func (NoopPublisher) Publish(context.Context, model.PostEvent) error { return nil }

// msgPublisher は*nats.Connのうち発行に必要な部分。
type msgPublisher interface {
	Publish(subj string, data []byte) error
}

// NATSPublisher はNATSへ投稿イベントを発行するPublisher。
// サブジェクトは "<prefix>.post.<type>" 形式となる。
type NATSPublisher struct {
	conn   msgPublisher
	prefix string
}

// NewNATSPublisher はNATSPublisherを生成する。
func NewNATSPublisher(conn msgPublisher, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject はイベント種別に対応するサブジェクトを返す。
func Subject(prefix string, eventType model.PostEventType) string {
	return fmt.Sprintf("%s.post.%s", prefix, eventType)
}

// Publish はイベントをJSONにエンコードして発行する。
func (p *NATSPublisher) Publish(ctx context.Context, event model.PostEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode post event: %w", err)
	}

	subject := Subject(p.prefix, event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// Connect はNATSサーバーへ接続する。
// 切断・再接続はslogへ記録し、再接続は無制限に試みる。
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("blogman"),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			slog.Error("nats error", slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return nc, nil
}

var (
	_ Publisher    = NoopPublisher{}
	_ Publisher    = (*NATSPublisher)(nil)
	_ msgPublisher = (*nats.Conn)(nil)
)
