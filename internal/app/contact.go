package app

import (
	"fmt"
	"strings"

	"playsdb/pkg/domain"
	"playsdb/pkg/mail"
)

// contactHistoryKeep bounds how many contact entries are retained per user.
const contactHistoryKeep = 50

// ContactInput is the payload of a contact-form submission.
type ContactInput struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

func (in *ContactInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Message = strings.TrimSpace(in.Message)
	switch {
	case in.Name == "":
		return validationf("Name is required")
	case in.Email == "":
		return validationf("Email is required")
	case in.Message == "":
		return validationf("Message is required")
	}
	return nil
}

// ContactUser relays a message from the signed-in sender to another user by
// email. A per-recipient cooldown prevents repeat messages; the remaining
// wait is reported in whole minutes.
func (a *App) ContactUser(sender domain.User, recipientID string, in ContactInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	recipient, ok, err := a.store.GetUserByID(recipientID)
	if err != nil {
		return a.wrapStoreErr("fetch recipient", err)
	}
	if !ok {
		return ErrNotFound
	}
	if recipient.Contact != domain.ContactYes {
		return ErrForbidden
	}

	now := a.now()
	for _, entry := range sender.ContactHistory {
		if entry.RecipientID != recipient.ID {
			continue
		}
		if wait := a.cooldown - now.Sub(entry.SentAt); wait > 0 {
			return &RateLimitError{Wait: wait}
		}
	}

	// Record the send before dispatch so a mail failure cannot bypass
	// the cooldown.
	history := sender.ContactHistory[:0:0]
	for _, entry := range sender.ContactHistory {
		if entry.RecipientID != recipient.ID {
			history = append(history, entry)
		}
	}
	history = append(history, domain.ContactEntry{RecipientID: recipient.ID, SentAt: now})
	if len(history) > contactHistoryKeep {
		history = history[len(history)-contactHistoryKeep:]
	}
	sender.ContactHistory = history
	sender.UpdatedAt = now
	if err := a.store.UpdateUser(sender); err != nil {
		return a.wrapStoreErr("save contact history", err)
	}

	a.mailer.Enqueue(contactMessage(recipient.Email,
		fmt.Sprintf("New message from %s via %s", in.Name, a.siteName), in))
	return nil
}

// ContactSite relays a public contact-form submission to the support inbox.
func (a *App) ContactSite(in ContactInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	if a.supportEmail == "" {
		return fmt.Errorf("support email not configured")
	}
	a.mailer.Enqueue(contactMessage(a.supportEmail,
		fmt.Sprintf("%s contact form: message from %s", a.siteName, in.Name), in))
	return nil
}

func contactMessage(to, subject string, in ContactInput) mail.Message {
	return mail.Message{
		To:      to,
		Subject: subject,
		Text: fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\n\n%s\n",
			in.Name, in.Email, orNA(in.Phone), in.Message),
	}
}
