// Package notify e-mails a summary when a long run ends.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
	"utmbindex-backend/internal/components/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("utmbindex.internal.notify")

const report_notify_send = "notify.send"

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// Enabled is false unless a server and at least one recipient are configured.
func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && len(c.To) > 0
}

type Field struct {
	Name  string
	Value any
}

// Summary describes one finished run.
type Summary struct {
	Command  string
	Output   string
	Started  time.Time
	Finished time.Time
	Fields   []Field
	// Err is why the run stopped early, nil when it completed.
	Err error
}

func (s Summary) Subject() string {
	status := "completed"
	if s.Err != nil {
		status = "stopped"
	}
	return fmt.Sprintf("utmb-cli %s %s", s.Command, status)
}

func (s Summary) Body() string {
	var out strings.Builder
	fmt.Fprintf(&out, "command: %s\n", s.Command)
	if s.Output != "" {
		fmt.Fprintf(&out, "output: %s\n", s.Output)
	}
	fmt.Fprintf(&out, "started: %s\n", s.Started.Format(time.RFC3339))
	fmt.Fprintf(&out, "duration: %s\n", s.Finished.Sub(s.Started).Round(time.Second))
	for _, f := range s.Fields {
		fmt.Fprintf(&out, "%s: %v\n", f.Name, f.Value)
	}
	if s.Err != nil {
		fmt.Fprintf(&out, "error: %s\n", s.Err)
	}
	return out.String()
}

type Notifier struct {
	config SmtpConfig
	tel    telemetry.API
}

func NewNotifier(config SmtpConfig, tel telemetry.API) Notifier {
	if tel == nil {
		tel = telemetry.Nop{}
	}
	return Notifier{
		config: config,
		tel:    telemetry.NewScopedAPI("notify", tel),
	}
}

func (n Notifier) Send(ctx context.Context, summary Summary) error {
	if !n.config.Enabled() {
		return nil
	}

	_, span := tracer.Start(ctx, "notify:Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("UTMB Index <%s>", n.config.EmailAddress)
	mail.To = n.config.To
	mail.Subject = summary.Subject()
	mail.Text = []byte(summary.Body())

	addr := fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}

// Deliver sends the summary and only reports a failure, a run that finished is never
// turned into a failed one by its notification.
func (n Notifier) Deliver(ctx context.Context, summary Summary) {
	err := n.Send(ctx, summary)
	if err != nil {
		n.tel.ReportWarning(report_notify_send, err, n.config.Server)
	}
}
