// Package composer builds notification subjects and bodies from alert data.
// All functions are pure: no I/O, no clock, no storage. The mailer renders
// whichever of Text/HTML the provider supports.
package composer

import (
	"fmt"
	"html"
	"strings"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
	"github.com/kritinkaul/automated-esg-tracker/internal/events"
)

// placeholder substitutes for missing optional fields so composition never fails.
const placeholder = "N/A"

// Message is a composed notification ready for a transport.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// capitalize upper-cases the first letter of an ASCII word. The cadence
// strings are the only inputs.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; 'a' <= c && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

// ScoreChange composes the ESG score change alert.
func ScoreChange(company string, oldScore, newScore, percentChange float64) Message {
	company = orPlaceholder(company)
	direction := "increased"
	color := "#28a745"
	if newScore < oldScore {
		direction = "decreased"
		color = "#dc3545"
	}

	subject := fmt.Sprintf("ESG Alert: %s Score Changed by %+.1f%%", company, percentChange*100)

	var sb strings.Builder
	sb.WriteString("ESG Score Alert\n")
	sb.WriteString("===============\n\n")
	fmt.Fprintf(&sb, "The ESG score for %s has %s.\n", company, direction)
	fmt.Fprintf(&sb, "Score: %.2f -> %.2f (%+.1f%%)\n", oldScore, newScore, percentChange*100)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); color: white; padding: 20px; text-align: center;">
    <h1>ESG Alert</h1>
    <p>Important ESG Score Change Detected</p>
  </div>
  <div style="padding: 20px;">
    <h2>ESG Score Alert for %[1]s</h2>
    <div style="background: #f8f9fa; border-left: 4px solid %[2]s; padding: 15px; margin: 20px 0;">
      <p>The ESG score for <strong>%[1]s</strong> has %[3]s.</p>
      <div style="font-size: 24px; font-weight: bold; color: %[2]s;">%.2[4]f &rarr; %.2[5]f (%+.1[6]f%%)</div>
    </div>
  </div>
  <div style="background: #f8f9fa; padding: 15px; text-align: center; font-size: 12px; color: #666;">
    <p>You're receiving this alert because you're subscribed to ESG updates for %[1]s.</p>
  </div>
</body>
</html>`, html.EscapeString(company), color, direction, oldScore, newScore, percentChange*100)

	return Message{Subject: subject, Text: sb.String(), HTML: htmlBody}
}

// Emissions composes the carbon emissions threshold alert.
func Emissions(company string, previous, current, percentChange float64) Message {
	company = orPlaceholder(company)
	subject := fmt.Sprintf("Carbon Emissions Alert: %s", company)

	var sb strings.Builder
	sb.WriteString("Carbon Emissions Alert\n")
	sb.WriteString("======================\n\n")
	fmt.Fprintf(&sb, "Company: %s\n", company)
	fmt.Fprintf(&sb, "Emissions: %.2f -> %.2f tons CO2 (%+.1f%%)\n", previous, current, percentChange*100)
	sb.WriteString("\nConsider reviewing their environmental policies and sustainability initiatives.\n")

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="background: linear-gradient(135deg, #dc3545 0%%, #c82333 100%%); color: white; padding: 20px; text-align: center;">
    <h1>Carbon Emissions Alert</h1>
  </div>
  <div style="padding: 20px;">
    <h2>Carbon Alert for %[1]s</h2>
    <div style="background: #fff3cd; border-left: 4px solid #ffc107; padding: 15px; margin: 20px 0;">
      <p><strong>Emissions:</strong> %.2[2]f &rarr; %.2[3]f tons CO2 (%+.1[4]f%%)</p>
    </div>
    <p>Consider reviewing their environmental policies and sustainability initiatives.</p>
  </div>
  <div style="background: #f8f9fa; padding: 15px; text-align: center; font-size: 12px; color: #666;">
    <p>You're receiving this alert because you're monitoring %[1]s.</p>
  </div>
</body>
</html>`, html.EscapeString(company), previous, current, percentChange*100)

	return Message{Subject: subject, Text: sb.String(), HTML: htmlBody}
}

// News composes the news sentiment alert. The metric is the tracked news
// sentiment score; the alert fires on threshold-crossing moves like the others.
func News(company string, oldScore, newScore, percentChange float64) Message {
	company = orPlaceholder(company)
	subject := fmt.Sprintf("ESG News Alert: %s", company)

	var sb strings.Builder
	sb.WriteString("ESG News Alert\n")
	sb.WriteString("==============\n\n")
	fmt.Fprintf(&sb, "News sentiment for %s moved %+.1f%% (%.2f -> %.2f).\n", company, percentChange*100, oldScore, newScore)
	sb.WriteString("Check the dashboard for the latest coverage.\n")

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); color: white; padding: 20px; text-align: center;">
    <h1>ESG News Alert</h1>
  </div>
  <div style="padding: 20px;">
    <p>News sentiment for <strong>%[1]s</strong> moved %+.1[2]f%% (%.2[3]f &rarr; %.2[4]f).</p>
    <p>Check the dashboard for the latest coverage.</p>
  </div>
</body>
</html>`, html.EscapeString(company), percentChange*100, oldScore, newScore)

	return Message{Subject: subject, Text: sb.String(), HTML: htmlBody}
}

// ForEvent dispatches to the category-specific composer. The category set is
// closed; digest alerts have their own entry point and never arrive here.
func ForEvent(category alerts.Category, company string, oldValue, newValue, percentChange float64) Message {
	switch category {
	case alerts.CategoryScoreChange:
		return ScoreChange(company, oldValue, newValue, percentChange)
	case alerts.CategoryEmissions:
		return Emissions(company, oldValue, newValue, percentChange)
	case alerts.CategoryNews:
		return News(company, oldValue, newValue, percentChange)
	default:
		// Unknown categories are filtered out before composition; compose a
		// generic message rather than panic if one slips through.
		return ScoreChange(company, oldValue, newValue, percentChange)
	}
}

// Digest composes the periodic summary message from caller-supplied
// aggregate data. Empty sections render with a placeholder line.
func Digest(recipient string, cadence alerts.Cadence, payload events.DigestPayload) Message {
	name := recipient
	if at := strings.IndexByte(recipient, '@'); at > 0 {
		name = recipient[:at]
	}
	name = orPlaceholder(name)

	title := capitalize(cadence.String())
	subject := fmt.Sprintf("Your %s ESG Summary", title)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\nHere's your %s ESG summary:\n\n", name, cadence)
	sb.WriteString("Top Performers\n")
	writeScores(&sb, payload.TopPerformers)
	sb.WriteString("\nCompanies to Watch\n")
	writeScores(&sb, payload.WatchList)
	sb.WriteString("\nHighlights\n")
	if len(payload.Highlights) == 0 {
		fmt.Fprintf(&sb, "  %s\n", placeholder)
	}
	for _, h := range payload.Highlights {
		fmt.Fprintf(&sb, "  - %s\n", h)
	}

	var hb strings.Builder
	hb.WriteString(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; text-align: center;">
    <h1>` + title + ` ESG Summary</h1>
  </div>
  <div style="padding: 20px;">
`)
	fmt.Fprintf(&hb, "    <h2>Hello %s,</h2>\n", html.EscapeString(name))
	writeScoresHTML(&hb, "Top Performers", payload.TopPerformers)
	writeScoresHTML(&hb, "Companies to Watch", payload.WatchList)
	hb.WriteString(`    <div style="background: #f8f9fa; border-radius: 8px; padding: 15px; margin: 15px 0;">
      <h3>Recent News Highlights</h3>
`)
	if len(payload.Highlights) == 0 {
		fmt.Fprintf(&hb, "      <p>%s</p>\n", placeholder)
	}
	for _, h := range payload.Highlights {
		fmt.Fprintf(&hb, "      <p>&bull; %s</p>\n", html.EscapeString(h))
	}
	hb.WriteString(`    </div>
  </div>
</body>
</html>`)

	return Message{Subject: subject, Text: sb.String(), HTML: hb.String()}
}

func writeScores(sb *strings.Builder, scores []events.CompanyScore) {
	if len(scores) == 0 {
		fmt.Fprintf(sb, "  %s\n", placeholder)
		return
	}
	for _, s := range scores {
		fmt.Fprintf(sb, "  %-8s %.2f\n", orPlaceholder(s.Company), s.Score)
	}
}

func writeScoresHTML(hb *strings.Builder, heading string, scores []events.CompanyScore) {
	hb.WriteString(`    <div style="background: #f8f9fa; border-radius: 8px; padding: 15px; margin: 15px 0;">
`)
	fmt.Fprintf(hb, "      <h3>%s</h3>\n", heading)
	if len(scores) == 0 {
		fmt.Fprintf(hb, "      <p>%s</p>\n", placeholder)
	}
	for _, s := range scores {
		fmt.Fprintf(hb, "      <div style=\"display: flex; justify-content: space-between;\"><span>%s</span><span>%.2f</span></div>\n",
			html.EscapeString(orPlaceholder(s.Company)), s.Score)
	}
	hb.WriteString("    </div>\n")
}

// Verification composes the signup verification email. The verify link embeds
// the single-use token; baseURL is the public address of the dashboard.
func Verification(baseURL, token string) Message {
	link := fmt.Sprintf("%s/verify?token=%s", strings.TrimRight(baseURL, "/"), token)
	subject := "Verify Your ESG Alert Subscription"

	var sb strings.Builder
	sb.WriteString("Welcome to ESG Alerts!\n\n")
	sb.WriteString("Thank you for signing up. To complete your registration, verify your email address by opening this link:\n\n")
	sb.WriteString(link + "\n\n")
	sb.WriteString("If you didn't sign up for ESG alerts, you can safely ignore this email.\n")

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); color: white; padding: 20px; text-align: center;">
    <h1>Welcome to ESG Alerts</h1>
    <p>Verify your email to start receiving alerts</p>
  </div>
  <div style="padding: 20px;">
    <p>Thank you for signing up for ESG alerts. To complete your registration, please verify your email address.</p>
    <p style="text-align: center;">
      <a href="%[1]s" style="background: #007bff; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Verify Email Address</a>
    </p>
    <p>Or copy and paste this link in your browser:</p>
    <p style="word-break: break-all; background: #f8f9fa; padding: 10px; border-radius: 5px;">%[1]s</p>
  </div>
  <div style="background: #f8f9fa; padding: 15px; text-align: center; font-size: 12px; color: #666;">
    <p>If you didn't sign up for ESG alerts, you can safely ignore this email.</p>
  </div>
</body>
</html>`, html.EscapeString(link))

	return Message{Subject: subject, Text: sb.String(), HTML: htmlBody}
}
