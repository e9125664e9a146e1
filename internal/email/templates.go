package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type protectionNoticeEmailData struct {
	baseEmailData
	Kind        string
	CompanyName string
	ExpiresOn   string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// renderProtectionNotice returns the subject and HTML body for notice.
func renderProtectionNotice(notice ProtectionNotice) (string, string, error) {
	var subjectFmt, heading string
	switch notice.Kind {
	case NoticeReminder:
		subjectFmt, heading = subjectReminderFmt, "Your lead protection is ending soon"
	case NoticeGracePeriod:
		subjectFmt, heading = subjectGracePeriodFmt, "Your lead is in its grace period"
	case NoticeExpired:
		subjectFmt, heading = subjectExpiredFmt, "Your lead protection has expired"
	default:
		return "", "", fmt.Errorf("unknown notice kind %q", notice.Kind)
	}

	company := notice.CompanyName
	if company == "" {
		company = notice.LeadID
	}

	data := protectionNoticeEmailData{
		baseEmailData: baseEmailData{
			Title:    heading,
			Heading:  heading,
			CTALabel: "Open lead",
			CTAURL:   notice.LeadURL,
		},
		Kind:        string(notice.Kind),
		CompanyName: company,
		ExpiresOn:   formatDate(notice.ExpiresAt),
	}
	body, err := renderEmailTemplate("protection_notice.html", data)
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf(subjectFmt, company), body, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2 January 2006")
}
