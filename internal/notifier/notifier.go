package notifier

import (
	"context"

	mail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/hasan-abir/commerceproject/internal/config"
)

// Notifier 订单通知协作方。发送失败只记日志，不影响订单事务。
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// New 按配置选择实现：未开启 SMTP 时只打日志
func New(cfg *config.SMTPConfig) Notifier {
	if !cfg.Enabled {
		return &LogNotifier{}
	}
	return &SMTPNotifier{cfg: cfg}
}

// SMTPNotifier 通过 SMTP 发送纯文本邮件
type SMTPNotifier struct {
	cfg *config.SMTPConfig
}

func (n *SMTPNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return err
	}
	if err := msg.To(recipient); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{mail.WithPort(n.cfg.Port)}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// LogNotifier 本地调试用，把“邮件”打进日志
type LogNotifier struct{}

func (n *LogNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	zap.L().Info("order notification (log only)",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
