package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/relaycrm/sync-api/internal/models"
	"github.com/relaycrm/sync-api/internal/partner"
	"github.com/relaycrm/sync-api/internal/repository"
)

// pollForms ingests new partner form submissions as lead contacts. Each form
// keeps its own cursor; submissions at or before the cursor are not fetched,
// and a seen-set makes redelivery idempotent. A failure on one form does not
// stop the others; the first error is returned so the job retries.
func (w *Worker) pollForms(ctx context.Context, env *orgEnv, p models.FormPollPayload) error {
	if len(p.FormIDs) == 0 {
		env.logger.Info().Msg("form poll payload names no forms, nothing to do")
		return nil
	}

	var firstErr error
	for _, formID := range p.FormIDs {
		if err := w.pollForm(ctx, env, formID, p.CreateFollowUpTask); err != nil {
			env.logger.Warn().Err(err).Str("form_id", formID).Msg("form poll failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (w *Worker) pollForm(ctx context.Context, env *orgEnv, formID string, followUp bool) error {
	cursor, err := w.cfg.Cursors.GetCursor(ctx, env.orgID, formID)
	if err != nil {
		return errors.Wrapf(err, "failed to load cursor for form %s", formID)
	}

	subs, err := w.cfg.API.ListFormSubmissions(ctx, env.token, formID, cursor)
	if err != nil {
		// Older forms only answer on the legacy endpoint.
		env.logger.Debug().Err(err).Str("form_id", formID).Msg("falling back to legacy submissions endpoint")
		subs, err = w.cfg.API.ListFormSubmissionsLegacy(ctx, env.token, formID, cursor)
		if err != nil {
			return errors.Wrapf(err, "failed to list submissions for form %s", formID)
		}
	}

	maxSubmitted := cursor
	for _, sub := range subs {
		if !sub.SubmittedAt.After(cursor) {
			continue
		}
		if err := w.ingestSubmission(ctx, env, formID, sub, followUp); err != nil {
			// Stop before advancing past the failed submission so the retry
			// picks it up again.
			if maxSubmitted.After(cursor) {
				if cerr := w.cfg.Cursors.SetCursor(ctx, env.orgID, formID, maxSubmitted); cerr != nil {
					env.logger.Error().Err(cerr).Str("form_id", formID).Msg("failed to advance form cursor")
				}
			}
			return err
		}
		if sub.SubmittedAt.After(maxSubmitted) {
			maxSubmitted = sub.SubmittedAt
		}
	}

	if maxSubmitted.After(cursor) {
		if err := w.cfg.Cursors.SetCursor(ctx, env.orgID, formID, maxSubmitted); err != nil {
			return errors.Wrapf(err, "failed to advance cursor for form %s", formID)
		}
	}
	return nil
}

func (w *Worker) ingestSubmission(ctx context.Context, env *orgEnv, formID string, sub partner.FormSubmission, followUp bool) error {
	seen, err := w.cfg.Cursors.SubmissionSeen(ctx, env.orgID, sub.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to check submission %s", sub.ID)
	}
	if seen {
		return nil
	}

	email := submissionValue(sub, "email")
	if email == "" {
		// Nothing to key a contact on. Record it so we never look again.
		env.logger.Warn().Str("submission_id", sub.ID).Str("form_id", formID).Msg("submission has no email, skipping")
		return w.cfg.Cursors.RecordSubmission(ctx, env.orgID, formID, sub.ID, "")
	}

	contact, err := w.leadContact(ctx, env, email, sub)
	if err != nil {
		w.recordAudit(ctx, env, models.DirectionInbound, models.ObjectFormSubmission, sub.ID, "failed", err)
		return err
	}

	if followUp {
		bestEffort(env.logger, "follow-up task", func() error {
			contactID := contact.ID
			title := fmt.Sprintf("Follow up: form submission from %s", email)
			_, err := w.cfg.Entities.CreateTask(ctx, models.Task{
				OrgID:     env.orgID,
				Title:     title,
				Body:      submissionBody(sub),
				Status:    "open",
				ContactID: &contactID,
			})
			return err
		})
	}

	if err := w.cfg.Cursors.RecordSubmission(ctx, env.orgID, formID, sub.ID, contact.ID); err != nil {
		return err
	}

	localID := contact.ID
	if _, err := w.cfg.Mappings.Upsert(ctx, models.ObjectMapping{
		OrgID:      env.orgID,
		ObjectType: models.ObjectFormSubmission,
		LocalID:    &localID,
		RemoteID:   sub.ID,
	}); err != nil {
		env.logger.Warn().Err(err).Str("submission_id", sub.ID).Msg("failed to upsert form submission mapping")
	}

	w.recordAudit(ctx, env, models.DirectionInbound, models.ObjectFormSubmission, sub.ID, "created", nil)
	return nil
}

// leadContact finds the contact for a submission email or creates a new lead.
// Existing contacts keep their fields; form values never overwrite them.
func (w *Worker) leadContact(ctx context.Context, env *orgEnv, email string, sub partner.FormSubmission) (models.Contact, error) {
	contact, err := w.cfg.Entities.GetContactByEmail(ctx, env.orgID, email)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return models.Contact{}, errors.Wrapf(err, "failed to look up contact %s", email)
	}

	created, err := w.cfg.Entities.CreateContact(ctx, models.Contact{
		OrgID:      env.orgID,
		Email:      email,
		FirstName:  submissionValue(sub, "firstname", "first_name"),
		LastName:   submissionValue(sub, "lastname", "last_name"),
		Phone:      submissionValue(sub, "phone"),
		Company:    submissionValue(sub, "company"),
		LeadSource: "form",
	})
	if err != nil {
		return models.Contact{}, errors.Wrapf(err, "failed to create lead contact for %s", email)
	}
	env.logger.Info().Str("contact_id", created.ID).Str("email", email).Msg("created lead contact from form submission")
	return created, nil
}

// submissionValue returns the first non-empty value among the given field
// names, matched case-insensitively.
func submissionValue(sub partner.FormSubmission, names ...string) string {
	for _, name := range names {
		for field, value := range sub.Values {
			if strings.EqualFold(field, name) && value != "" {
				return value
			}
		}
	}
	return ""
}

func submissionBody(sub partner.FormSubmission) string {
	var b strings.Builder
	b.WriteString("Form submission ")
	b.WriteString(sub.ID)
	b.WriteString(" at ")
	b.WriteString(sub.SubmittedAt.Format(time.RFC3339))
	return b.String()
}
