package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/edvin/billing/internal/model"
)

var noticeTemplate = template.Must(template.New("billing_notice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background-color: #f5f5f5; padding: 40px 0;">
<div style="max-width: 480px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px 40px;">
<h1 style="margin: 0 0 16px; font-size: 22px; color: #1a1a1a;">{{.Title}}</h1>
<p style="margin: 0 0 24px; color: #444; font-size: 15px; line-height: 1.5;">{{.Body}}</p>
<a href="{{.RenewURL}}" style="display: inline-block; padding: 12px 32px; background: #2563eb; color: #ffffff; text-decoration: none; border-radius: 6px;">Renew plan</a>
</div>
</body>
</html>`))

type noticeData struct {
	Title    string
	Body     string
	RenewURL string
}

// RenderNotice builds the subject, HTML and text bodies for a billing notice.
func RenderNotice(n model.BillingNotice, renewURL string) (subject, html, text string, err error) {
	data := noticeData{RenewURL: renewURL}
	deadline := n.AccessEndsAt.Format("2006-01-02")

	switch n.Kind {
	case model.NoticeExpiring:
		subject = fmt.Sprintf("%s: your plan expires in %s", n.OrganizationName, days(n.DaysLeft))
		data.Title = "Your plan is about to expire"
		data.Body = fmt.Sprintf("Access for %s ends on %s. Renew now to keep your team working without interruption.",
			n.OrganizationName, deadline)
	case model.NoticeExpired:
		subject = fmt.Sprintf("%s: your plan has expired", n.OrganizationName)
		data.Title = "Your plan has expired"
		data.Body = fmt.Sprintf("Access for %s ended on %s. Changes are blocked until the plan is renewed; your data is kept.",
			n.OrganizationName, deadline)
	default:
		return "", "", "", fmt.Errorf("unknown notice kind %q", n.Kind)
	}

	var buf bytes.Buffer
	if err := noticeTemplate.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render billing notice: %w", err)
	}

	text = fmt.Sprintf("%s\n\n%s\n\nRenew: %s", data.Title, data.Body, renewURL)
	return subject, buf.String(), text, nil
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
