package notify

import (
	"context"
	"fmt"

	"github.com/edvin/billing/internal/model"
)

// Notifier turns billing notices into emails.
type Notifier struct {
	sender   Sender
	from     string
	renewURL string
}

func NewNotifier(sender Sender, from, renewURL string) *Notifier {
	return &Notifier{sender: sender, from: from, renewURL: renewURL}
}

// Notify renders and sends a notice. Notices without a recipient are skipped.
func (n *Notifier) Notify(ctx context.Context, notice model.BillingNotice) error {
	if notice.To == "" {
		return nil
	}

	subject, html, text, err := RenderNotice(notice, n.renewURL)
	if err != nil {
		return err
	}

	if err := n.sender.Send(ctx, Message{
		From:    n.from,
		To:      notice.To,
		Subject: subject,
		HTML:    html,
		Text:    text,
		Tag:     "billing-" + notice.Kind,
	}); err != nil {
		return fmt.Errorf("send %s notice to org %s: %w", notice.Kind, notice.OrganizationID, err)
	}
	return nil
}
