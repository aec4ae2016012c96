package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// SMSOpts holds Twilio configuration for the SMS notifier.
type SMSOpts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// AdminNumber receives the lead alerts, in E.164 format.
	AdminNumber string
}

// SMSOption configures the SMS notifier.
type SMSOption func(*SMSOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) SMSOption {
	return func(o *SMSOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) SMSOption {
	return func(o *SMSOpts) { o.AuthToken = token }
}

// WithFromNumber sets the Twilio sender number.
func WithFromNumber(from string) SMSOption {
	return func(o *SMSOpts) { o.FromNumber = from }
}

// WithAdminNumber sets the recipient for lead alerts.
func WithAdminNumber(to string) SMSOption {
	return func(o *SMSOpts) { o.AdminNumber = to }
}

// messageCreator is the slice of the Twilio REST client used here, split
// out so tests can stub it.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSNotifier sends a short new-lead alert over Twilio SMS.
type SMSNotifier struct {
	api         messageCreator
	fromNumber  string
	adminNumber string
}

// NewSMSNotifier creates an SMS notifier. All four Twilio settings are
// required.
func NewSMSNotifier(opts ...SMSOption) (*SMSNotifier, error) {
	var cfg SMSOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSMSNotifier invoked",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "",
		"AdminNumber_set", cfg.AdminNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" || cfg.AdminNumber == "" {
		return nil, fmt.Errorf("from and admin numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &SMSNotifier{
		api:         client.Api,
		fromNumber:  cfg.FromNumber,
		adminNumber: cfg.AdminNumber,
	}, nil
}

// Name identifies the channel for logging.
func (n *SMSNotifier) Name() string { return "sms" }

// NotifyNewLead sends a compact alert with the lead's name and contact
// details.
func (n *SMSNotifier) NotifyNewLead(ctx context.Context, lead *models.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New lead: %s", orDefault(lead.Name, "unknown"))
	if lead.Phone != "" {
		fmt.Fprintf(&b, ", phone %s", lead.Phone)
	}
	if lead.Email != "" {
		fmt.Fprintf(&b, ", email %s", lead.Email)
	}
	if lead.SelectedCategory != "" {
		fmt.Fprintf(&b, " (%s)", lead.SelectedCategory)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.adminNumber)
	params.SetFrom(n.fromNumber)
	params.SetBody(b.String())

	if _, err := n.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send lead alert SMS: %w", err)
	}
	return nil
}
