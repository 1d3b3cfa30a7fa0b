package datapush

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	"FlightAnalytics/src/config"

	"github.com/jordan-wright/email"
)

const (
	RETRY_TIMES    = 3
	RETRY_INTERVAL = 2 * time.Second
	defaultSMTPort = "465"
)

// Sender delivers a built message. email.Email satisfies it through
// tlsSender; tests swap in a recorder.
type Sender interface {
	Send(e *email.Email, addr string, auth smtp.Auth, host string) error
}

type tlsSender struct{}

func (tlsSender) Send(e *email.Email, addr string, auth smtp.Auth, host string) error {
	return e.SendWithTLS(addr, auth, &tls.Config{ServerName: host})
}

// MailPusher mails generated report workbooks.
type MailPusher struct {
	cfg      *config.Config
	sender   Sender
	times    int
	interval time.Duration
}

func NewMailPusher(cfg *config.Config) *MailPusher {
	return &MailPusher{cfg: cfg, sender: tlsSender{}, times: RETRY_TIMES, interval: RETRY_INTERVAL}
}

// smtpAddr makes sure the server address carries a port.
func smtpAddr(server string) (addr, host string) {
	addr = server
	if !strings.Contains(addr, ":") {
		addr += ":" + defaultSMTPort
	}
	return addr, strings.Split(addr, ":")[0]
}

// BuildMessage prepares the report mail with the workbook attached.
func (p *MailPusher) BuildMessage(reportPath, summary string) (*email.Email, error) {
	if _, err := os.Stat(reportPath); err != nil {
		return nil, fmt.Errorf("report not found: %w", err)
	}

	e := email.NewEmail()
	e.From = fmt.Sprintf("Flight Analytics <%s>", p.cfg.SendEmail.Username)
	e.To = p.cfg.SendEmail.To
	e.Subject = p.cfg.SendEmail.Subject
	if e.Subject == "" {
		e.Subject = "Passenger report"
	}
	e.Subject += " " + strings.TrimSuffix(filepath.Base(reportPath), filepath.Ext(reportPath))
	e.Text = []byte(summary)

	if _, err := e.AttachFile(reportPath); err != nil {
		return nil, fmt.Errorf("attach %s: %w", reportPath, err)
	}
	return e, nil
}

// SendReport mails the workbook at reportPath, retrying on failure.
func (p *MailPusher) SendReport(reportPath, summary string) error {
	if !p.cfg.MailEnabled() {
		return fmt.Errorf("mail is not configured")
	}

	e, err := p.BuildMessage(reportPath, summary)
	if err != nil {
		return err
	}

	addr, host := smtpAddr(p.cfg.SendEmail.Server)
	auth := smtp.PlainAuth("", p.cfg.SendEmail.Username, p.cfg.SendEmail.Password, host)

	return retry(func() error {
		return p.sender.Send(e, addr, auth, host)
	}, p.times, p.interval)
}

func retry(fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", times, err)
}
