package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/sswpa/box-office/config"
	"github.com/sswpa/box-office/internal/model"
)

// Mailer sends order emails over plain SMTP. Sending is fire-and-forget
// from the caller's point of view: a failed email never changes an
// order's state.
type Mailer struct {
	host     string
	port     string
	from     string
	password string
	log      *zap.Logger
}

func New(cfg config.SMTPConfig, log *zap.Logger) *Mailer {
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		from:     cfg.From,
		password: cfg.Password,
		log:      log,
	}
}

// Enabled reports whether SMTP is configured. Local development runs
// without it.
func (m *Mailer) Enabled() bool {
	return m.host != "" && m.from != ""
}

func (m *Mailer) SendOrderConfirmation(order *model.Order, recital *model.Recital, items []model.OrderItem) error {
	var lines strings.Builder
	for _, item := range items {
		fmt.Fprintf(&lines, "  %d x $%.2f\n", item.Quantity, float64(item.PricePerTicketCents)/100)
	}

	subject := fmt.Sprintf("Your tickets for %s", recital.Title)
	body := fmt.Sprintf(
		"Dear %s,\n\nThank you for your order.\n\n%s\n%s\n%s\n\n%sTotal: $%.2f\nOrder reference: %s\n\nWe look forward to seeing you.\nSteinway Society of Western Pennsylvania",
		order.BuyerName,
		recital.Title,
		recital.Artist,
		recital.StartsAt.Format("Monday, January 2, 2006 at 3:04 PM"),
		lines.String(),
		float64(order.TotalAmountCents)/100,
		order.Reference,
	)

	return m.send(order.BuyerEmail, subject, body)
}

func (m *Mailer) send(to, subject, body string) error {
	if !m.Enabled() {
		m.log.Debug("smtp not configured, skipping email", zap.String("to", to))
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, to, subject, body,
	)

	addr := m.host + ":" + m.port
	auth := smtp.PlainAuth("", m.from, m.password, m.host)

	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		m.log.Warn("failed to send email", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
