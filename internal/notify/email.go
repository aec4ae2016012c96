package notify

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	gomail "gopkg.in/gomail.v2"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// EmailOpts holds SMTP configuration for the email notifier.
type EmailOpts struct {
	SMTPHost   string
	SMTPPort   int
	Username   string
	Password   string
	AdminEmail string
	// From defaults to Username when empty.
	From string
}

// EmailOption configures the email notifier.
type EmailOption func(*EmailOpts)

// WithSMTPHost sets the SMTP server host.
func WithSMTPHost(host string) EmailOption {
	return func(o *EmailOpts) { o.SMTPHost = host }
}

// WithSMTPPort sets the SMTP server port.
func WithSMTPPort(port int) EmailOption {
	return func(o *EmailOpts) { o.SMTPPort = port }
}

// WithSMTPCredentials sets the SMTP username and password.
func WithSMTPCredentials(username, password string) EmailOption {
	return func(o *EmailOpts) {
		o.Username = username
		o.Password = password
	}
}

// WithAdminEmail sets the recipient for lead alerts.
func WithAdminEmail(email string) EmailOption {
	return func(o *EmailOpts) { o.AdminEmail = email }
}

// WithFromAddress overrides the sender address.
func WithFromAddress(from string) EmailOption {
	return func(o *EmailOpts) { o.From = from }
}

var leadEmailTemplate = template.Must(template.New("lead_alert").Parse(`<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
  .content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
  .lead-info { background: white; padding: 20px; border-radius: 8px; margin: 20px 0; }
  .info-row { padding: 10px 0; border-bottom: 1px solid #eee; }
  .label { font-weight: bold; color: #667eea; display: inline-block; width: 150px; }
  .value { color: #333; }
  .footer { text-align: center; margin-top: 30px; color: #666; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>🎯 New Lead Alert!</h1>
    <p>A new potential customer has shown interest</p>
  </div>
  <div class="content">
    <div class="lead-info">
      <h2>Lead Information</h2>
      <div class="info-row"><span class="label">Name:</span><span class="value">{{.Name}}</span></div>
      <div class="info-row"><span class="label">Email:</span><span class="value">{{.Email}}</span></div>
      <div class="info-row"><span class="label">Phone:</span><span class="value">{{.Phone}}</span></div>
      <div class="info-row"><span class="label">Purpose:</span><span class="value">{{.Purpose}}</span></div>
      <div class="info-row"><span class="label">Location:</span><span class="value">{{.Location}}</span></div>
      <div class="info-row"><span class="label">Budget:</span><span class="value">{{.Budget}}</span></div>
      <div class="info-row"><span class="label">Timeline:</span><span class="value">{{.Timeline}}</span></div>
      <div class="info-row"><span class="label">Property Type:</span><span class="value">{{.PropertyType}}</span></div>
      <div class="info-row"><span class="label">Session ID:</span><span class="value" style="font-size: 11px;">{{.SessionID}}</span></div>
      <div class="info-row"><span class="label">Captured At:</span><span class="value">{{.CapturedAt}}</span></div>
    </div>
    <p style="margin-top: 20px;"><strong>Next Steps:</strong><br>
      &bull; Review the lead details<br>
      &bull; Contact within 24 hours for best conversion<br>
      &bull; Check conversation history for context
    </p>
  </div>
  <div class="footer"><p>This is an automated notification from the Vivid Realty lead chatbot</p></div>
</div>
</body>
</html>`))

type leadEmailData struct {
	Name         string
	Email        string
	Phone        string
	Purpose      string
	Location     string
	Budget       string
	Timeline     string
	PropertyType string
	SessionID    string
	CapturedAt   string
}

// EmailNotifier sends new-lead alerts to the sales inbox over SMTP.
type EmailNotifier struct {
	dialer     *gomail.Dialer
	from       string
	adminEmail string
}

// NewEmailNotifier creates an email notifier. Host, credentials, and the
// admin recipient are all required.
func NewEmailNotifier(opts ...EmailOption) (*EmailNotifier, error) {
	var cfg EmailOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewEmailNotifier invoked",
		"SMTPHost_set", cfg.SMTPHost != "",
		"Username_set", cfg.Username != "",
		"AdminEmail_set", cfg.AdminEmail != "")

	if cfg.SMTPHost == "" || cfg.Username == "" || cfg.Password == "" || cfg.AdminEmail == "" {
		return nil, fmt.Errorf("SMTP host, credentials, and admin email must be provided")
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return &EmailNotifier{
		dialer:     gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		from:       from,
		adminEmail: cfg.AdminEmail,
	}, nil
}

// Name identifies the channel for logging.
func (n *EmailNotifier) Name() string { return "email" }

// NotifyNewLead renders the HTML lead alert and delivers it to the sales
// inbox.
func (n *EmailNotifier) NotifyNewLead(ctx context.Context, lead *models.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := leadEmailData{
		Name:         orDefault(lead.Name, "Not provided"),
		Email:        orDefault(lead.Email, "Not provided"),
		Phone:        orDefault(lead.Phone, "Not provided"),
		Purpose:      orDefault(lead.Purpose, "Not specified"),
		Location:     orDefault(lead.Location, "Not specified"),
		Budget:       orDefault(lead.Budget, "Not specified"),
		Timeline:     orDefault(lead.Timeline, "Not specified"),
		PropertyType: orDefault(lead.PropertyType, "Not specified"),
		SessionID:    lead.SessionID,
		CapturedAt:   time.Now().Format("2006-01-02 15:04:05"),
	}

	var body strings.Builder
	if err := leadEmailTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render lead alert: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", n.adminEmail)
	msg.SetHeader("Subject", fmt.Sprintf("🏡 New Real Estate Lead: %s", orDefault(lead.Name, "Unknown")))
	msg.SetBody("text/html", body.String())

	if err := n.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send lead alert email: %w", err)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
