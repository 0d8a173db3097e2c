// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/mailer"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type NotificationService struct {
	config  *config.Config
	outbox  *OutboxService
	mailer  mailer.Mailer
	storage *StorageService
}

type EmailTemplate struct {
	Subject string
	Body    *template.Template
}

// EmailTaskPayload is stored in the outbox. Attachments are referenced by storage URL and read at
// send time so payloads stay small.
type EmailTaskPayload struct {
	To          []string             `json:"to"`
	ReplyTo     string               `json:"reply_to,omitempty"`
	Subject     string               `json:"subject"`
	HTML        string               `json:"html"`
	Template    string               `json:"template"`
	Attachments []EmailAttachmentRef `json:"attachments,omitempty"`
}

type EmailAttachmentRef struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// NominationSnapshot keeps what the deletion notice needs after the record is gone.
type NominationSnapshot struct {
	ID             uuid.UUID `json:"id"`
	NomineeName    string    `json:"nominee_name"`
	NominatorName  string    `json:"nominator_name"`
	NominatorEmail string    `json:"nominator_email"`
	CategoryName   string    `json:"category_name"`
	PhotoURL       string    `json:"-"`
	CertificateURL string    `json:"-"`
}

func NewNotificationService(config *config.Config, outbox *OutboxService, m mailer.Mailer, storage *StorageService) *NotificationService {
	s := &NotificationService{
		config:  config,
		outbox:  outbox,
		mailer:  m,
		storage: storage,
	}
	outbox.Register(models.TaskKindEmail, s.HandleEmailTask)
	return s
}

func (s *NotificationService) baseData() map[string]interface{} {
	return map[string]interface{}{
		"SiteName":    s.config.Certificate.Issuer,
		"AwardName":   s.config.Certificate.AwardName,
		"FrontendURL": strings.TrimRight(s.config.Frontend.BaseURL, "/"),
		"Year":        time.Now().Year(),
	}
}

func (s *NotificationService) SendNominationReceived(ctx context.Context, nomination *models.Nomination) {
	data := s.baseData()
	data["NominatorName"] = nomination.NominatorName
	data["NomineeName"] = nomination.NomineeName
	data["CategoryName"] = categoryName(nomination)

	s.enqueue(ctx, "nomination_received", &nomination.ID, []string{nomination.NominatorEmail}, "", data, nil)
}

func (s *NotificationService) SendStatusChanged(ctx context.Context, nomination *models.Nomination) {
	data := s.baseData()
	data["NominatorName"] = nomination.NominatorName
	data["NomineeName"] = nomination.NomineeName
	data["CategoryName"] = categoryName(nomination)
	data["Status"] = string(nomination.Status)
	data["CanVote"] = nomination.Status == models.NominationStatusApproved
	data["NominationURL"] = fmt.Sprintf("%s/awards/nominations/%s", strings.TrimRight(s.config.Frontend.BaseURL, "/"), nomination.ID)
	if nomination.AdminNotes != "" {
		// Sanitized by RenderMarkdown
		data["AdminNotes"] = template.HTML(utils.RenderMarkdown(nomination.AdminNotes))
	}

	s.enqueue(ctx, "status_changed", &nomination.ID, []string{nomination.NominatorEmail}, "", data, nil)
}

func (s *NotificationService) SendCertificateIssued(ctx context.Context, nomination *models.Nomination) {
	data := s.baseData()
	data["NominatorName"] = nomination.NominatorName
	data["NomineeName"] = nomination.NomineeName
	data["CategoryName"] = categoryName(nomination)
	data["CertificateID"] = nomination.CertificateID
	data["Status"] = string(nomination.Status)

	attachments := []EmailAttachmentRef{{
		Filename:    nomination.CertificateID + path.Ext(nomination.CertificateFile),
		ContentType: "image/png",
		URL:         nomination.CertificateFile,
	}}

	s.enqueue(ctx, "certificate_issued", &nomination.ID, []string{nomination.NominatorEmail}, "", data, attachments)
}

func (s *NotificationService) SendNominationDeleted(ctx context.Context, snapshot *NominationSnapshot) {
	data := s.baseData()
	data["NominatorName"] = snapshot.NominatorName
	data["NomineeName"] = snapshot.NomineeName
	data["CategoryName"] = snapshot.CategoryName

	s.enqueue(ctx, "nomination_deleted", &snapshot.ID, []string{snapshot.NominatorEmail}, "", data, nil)
}

func (s *NotificationService) SendContactReceived(ctx context.Context, contact *models.Contact) {
	data := s.baseData()
	data["Name"] = contact.Name
	data["Email"] = contact.Email
	data["Phone"] = contact.Phone
	data["Company"] = contact.Company
	data["Subject"] = contact.Subject
	data["Message"] = contact.Message

	s.enqueue(ctx, "contact_received", &contact.ID, []string{s.config.Email.AdminEmail}, contact.Email, data, nil)
}

func (s *NotificationService) SendNewsletterWelcome(ctx context.Context, subscriber *models.NewsletterSubscriber, unsubscribeURL string) {
	data := s.baseData()
	data["Name"] = subscriber.Name
	data["UnsubscribeURL"] = unsubscribeURL

	s.enqueue(ctx, "newsletter_welcome", &subscriber.ID, []string{subscriber.Email}, "", data, nil)
}

func (s *NotificationService) enqueue(ctx context.Context, templateType string, referenceID *uuid.UUID, to []string, replyTo string, data map[string]interface{}, attachments []EmailAttachmentRef) {
	subject, body, err := s.renderTemplate(templateType, data)
	if err != nil {
		logrus.WithError(err).WithField("template", templateType).Error("Failed to render email template")
		return
	}

	s.outbox.EnqueueBestEffort(ctx, models.TaskKindEmail, referenceID, &EmailTaskPayload{
		To:          to,
		ReplyTo:     replyTo,
		Subject:     subject,
		HTML:        body,
		Template:    templateType,
		Attachments: attachments,
	})
}

// HandleEmailTask is the outbox handler for email tasks.
func (s *NotificationService) HandleEmailTask(ctx context.Context, task *models.OutboxTask) error {
	var payload EmailTaskPayload
	if err := decodePayload(task, &payload); err != nil {
		return err
	}

	msg := &mailer.Message{
		To:      payload.To,
		ReplyTo: payload.ReplyTo,
		Subject: payload.Subject,
		HTML:    payload.HTML,
	}
	if err := msg.Validate(); err != nil {
		return Permanent(err)
	}

	for _, ref := range payload.Attachments {
		content, err := s.storage.ReadFile(ctx, ref.URL)
		if err != nil {
			return fmt.Errorf("failed to read attachment %s: %w", ref.Filename, err)
		}
		msg.Attachments = append(msg.Attachments, mailer.Attachment{
			Filename:    ref.Filename,
			ContentType: ref.ContentType,
			Content:     content,
		})
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"template": payload.Template,
		"provider": s.mailer.Name(),
		"task_id":  task.ID.String(),
	}).Info("Email sent")
	return nil
}

func (s *NotificationService) renderTemplate(templateType string, data interface{}) (string, string, error) {
	tmpl, ok := emailTemplates[templateType]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", templateType)
	}

	var buf bytes.Buffer
	if err := tmpl.Body.Execute(&buf, data); err != nil {
		return "", "", err
	}

	subject := tmpl.Subject
	if m, ok := data.(map[string]interface{}); ok {
		if name, ok := m["NomineeName"].(string); ok && strings.Contains(subject, "%s") {
			subject = fmt.Sprintf(subject, name)
		}
	}

	return subject, buf.String(), nil
}

func categoryName(nomination *models.Nomination) string {
	if nomination.Category != nil {
		return nomination.Category.Name
	}
	return ""
}

const emailLayoutStart = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933;">
`

const emailLayoutEnd = `
	<p>Best regards,<br>{{.SiteName}} Team</p>
</body>
</html>`

func mustEmailTemplate(name, subject, body string) EmailTemplate {
	return EmailTemplate{
		Subject: subject,
		Body:    template.Must(template.New(name).Parse(emailLayoutStart + body + emailLayoutEnd)),
	}
}

var emailTemplates = map[string]EmailTemplate{
	"nomination_received": mustEmailTemplate("nomination_received", "Nomination received: %s", `
	<h2>Thank you for your nomination</h2>
	<p>Hello {{.NominatorName}},</p>
	<p>We have received your nomination of <strong>{{.NomineeName}}</strong>{{if .CategoryName}} for <strong>{{.CategoryName}}</strong>{{end}} in the {{.AwardName}}.</p>
	<p>Our team will review it shortly. You will receive an email when its status changes.</p>`),

	"status_changed": mustEmailTemplate("status_changed", "Nomination update: %s", `
	<h2>Your nomination has been updated</h2>
	<p>Hello {{.NominatorName}},</p>
	<p>The nomination of <strong>{{.NomineeName}}</strong>{{if .CategoryName}} ({{.CategoryName}}){{end}} is now <strong>{{.Status}}</strong>.</p>
	{{if .CanVote}}<p>Voting is open. Share this link so others can vote: <a href="{{.NominationURL}}">{{.NominationURL}}</a></p>{{end}}
	{{if .AdminNotes}}<div><p>Notes from the committee:</p>{{.AdminNotes}}</div>{{end}}`),

	"certificate_issued": mustEmailTemplate("certificate_issued", "Your certificate: %s", `
	<h2>Congratulations!</h2>
	<p>Hello {{.NominatorName}},</p>
	<p>The certificate for <strong>{{.NomineeName}}</strong> ({{.Status}}{{if .CategoryName}}, {{.CategoryName}}{{end}}) is attached.</p>
	<p>Certificate ID: <code>{{.CertificateID}}</code></p>`),

	"nomination_deleted": mustEmailTemplate("nomination_deleted", "Nomination removed: %s", `
	<h2>Nomination removed</h2>
	<p>Hello {{.NominatorName}},</p>
	<p>The nomination of <strong>{{.NomineeName}}</strong>{{if .CategoryName}} for {{.CategoryName}}{{end}} has been removed from the {{.AwardName}}.</p>
	<p>If you believe this was a mistake, please reply to this email.</p>`),

	"contact_received": mustEmailTemplate("contact_received", "New contact message", `
	<h2>New contact form message</h2>
	<p><strong>From:</strong> {{.Name}} &lt;{{.Email}}&gt;</p>
	{{if .Phone}}<p><strong>Phone:</strong> {{.Phone}}</p>{{end}}
	{{if .Company}}<p><strong>Company:</strong> {{.Company}}</p>{{end}}
	<p><strong>Subject:</strong> {{.Subject}}</p>
	<p style="white-space: pre-wrap;">{{.Message}}</p>`),

	"newsletter_welcome": mustEmailTemplate("newsletter_welcome", "Welcome to the SAP Technologies newsletter", `
	<h2>Welcome{{if .Name}}, {{.Name}}{{end}}!</h2>
	<p>You are now subscribed to news from {{.SiteName}}.</p>
	<p style="font-size: 12px;">Not interested any more? <a href="{{.UnsubscribeURL}}">Unsubscribe</a></p>`),
}
