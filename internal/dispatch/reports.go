package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/logging"
	"truck_notify_bot/internal/mailer"
	"truck_notify_bot/internal/report"
)

// reportJob describes one report run through the shared pipeline.
type reportJob struct {
	kind       string
	subject    string
	name       string // what the report is about, shown in messages
	title      string // "Maintenance", "Overnight", "Overstay"
	email      string
	processing string
	render     func() (report.Document, error)
}

func (d *Dispatcher) handleRepair(ctx context.Context, msg Message, rep domain.RepairReport) error {
	return d.runReport(ctx, msg, reportJob{
		kind:       domain.ReportKindRepair,
		subject:    report.RepairSubject(rep),
		name:       rep.RegNo,
		title:      "Maintenance",
		email:      rep.Email,
		processing: fmt.Sprintf("🛠️ Processing maintenance report for *%s*...", rep.RegNo),
		render:     func() (report.Document, error) { return d.deps.Renderer.Repair(rep) },
	})
}

func (d *Dispatcher) handleStay(ctx context.Context, msg Message, rep domain.StayReport) error {
	kind := domain.ReportKindOvernight
	if rep.Kind == domain.StayOverstay {
		kind = domain.ReportKindOverstay
	}
	title := rep.Kind.Title()

	return d.runReport(ctx, msg, reportJob{
		kind:       kind,
		subject:    report.StaySubject(rep),
		name:       rep.OMCName,
		title:      title,
		email:      rep.Email,
		processing: fmt.Sprintf("Processing *%s Report* for OMC: *%s*...", title, rep.OMCName),
		render:     func() (report.Document, error) { return d.deps.Renderer.Stay(rep) },
	})
}

// runReport renders the attachment, sends it to the chat, emails it and
// records the outcome in the report log.
func (d *Dispatcher) runReport(ctx context.Context, msg Message, job reportJob) error {
	if err := d.reply(ctx, msg, job.processing); err != nil {
		return err
	}

	log := d.log(msg, "report").WithFields(logging.Fields{"kind": job.kind, "subject": job.subject})
	recordID := d.openRecord(ctx, msg, job, log)

	status, failure := d.deliverReport(ctx, msg, job)
	if failure != nil {
		status = domain.ReportStatusError
		log.WithError(failure).Error("report processing failed")
		d.closeRecord(ctx, recordID, status, failure.Error(), log)
		d.admin.Notify(ctx, fmt.Sprintf("*%s Report Error:*\nSubject: %s\nUser: %s\nError: %v", job.title, job.name, msg.who(), failure))
		return d.reply(ctx, msg, fmt.Sprintf("❌ Error processing your *%s Report* for *%s*. Admin notified. %v", job.title, job.name, failure))
	}

	d.closeRecord(ctx, recordID, status, "", log)
	log.WithField("status", status).Info("report processed")
	d.admin.Notify(ctx, fmt.Sprintf("%s report processed for %s. Status: %s. User: %s", job.title, job.name, status, msg.who()))
	return nil
}

// deliverReport returns the final delivery status, or an error when the
// report could not be produced or shown to the user at all.
func (d *Dispatcher) deliverReport(ctx context.Context, msg Message, job reportJob) (string, error) {
	doc, err := job.render()
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	caption := fmt.Sprintf("%s report for *%s* generated.", job.title, job.name)
	if err := d.deps.Sender.SendDocument(ctx, msg.ChatID, doc.Attachment.Filename, doc.Attachment.Data, caption); err != nil {
		return "", fmt.Errorf("send report document: %w", err)
	}

	recipients := report.Recipients(job.email, d.deps.DefaultRecipients)
	if len(recipients) == 0 {
		return domain.ReportStatusNoRecipients, d.reply(ctx, msg, msgNoRecipients)
	}

	if d.deps.Mailer == nil || !d.deps.Mailer.Enabled() {
		d.admin.Notify(ctx, "Attempted to send email, but SMTP is not configured.")
		if err := d.reply(ctx, msg, msgEmailDisabled); err != nil {
			return "", err
		}
		return domain.ReportStatusEmailFailed, d.reply(ctx, msg, msgEmailNotSent)
	}

	err = d.deps.Mailer.Send(ctx, mailer.Message{
		To:      recipients,
		Subject: doc.Subject,
		Body:    doc.Body,
		Attachments: []mailer.Attachment{{
			Filename:    doc.Attachment.Filename,
			ContentType: doc.Attachment.ContentType,
			Data:        doc.Attachment.Data,
		}},
	})
	if err != nil {
		d.stats.emailFailed()
		d.admin.Notify(ctx, fmt.Sprintf("*Email Sending Failed:*\nTo: %s\nSubject: %s\nError: %v", strings.Join(recipients, ","), doc.Subject, err))
		if !errors.Is(err, mailer.ErrNotConfigured) {
			if replyErr := d.reply(ctx, msg, fmt.Sprintf("📧 Failed to send email. Admin has been notified. Error: %v", err)); replyErr != nil {
				return "", replyErr
			}
		}
		return domain.ReportStatusEmailFailed, d.reply(ctx, msg, msgEmailNotSent)
	}

	d.stats.emailSent()
	return domain.ReportStatusCompleted, d.reply(ctx, msg, "📧 Email with report sent to: "+strings.Join(recipients, ", "))
}

func (d *Dispatcher) openRecord(ctx context.Context, msg Message, job reportJob, log *logrus.Entry) string {
	if d.deps.Reports == nil {
		return ""
	}

	record, err := d.deps.Reports.Create(ctx, domain.ReportRecord{
		Kind:       job.kind,
		Subject:    job.subject,
		UserID:     msg.UserID,
		ChatID:     msg.ChatID,
		Recipients: report.Recipients(job.email, d.deps.DefaultRecipients),
	})
	if err != nil {
		log.WithError(err).Warn("failed to create report log entry")
		return ""
	}
	return record.ID
}

func (d *Dispatcher) closeRecord(ctx context.Context, id, status, errText string, log *logrus.Entry) {
	if d.deps.Reports == nil || id == "" {
		return
	}
	if err := d.deps.Reports.UpdateStatus(ctx, id, status, errText); err != nil {
		log.WithError(err).Warn("failed to update report log entry")
	}
}
