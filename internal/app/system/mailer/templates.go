// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// DigestLine is one entry of the digest: Prefix, a linked LinkText, then Suffix.
type DigestLine struct {
	Prefix   string
	LinkText string
	URL      string
	Suffix   string
}

// DigestEmailData holds data for the publication digest templates.
type DigestEmailData struct {
	SiteName    string
	SettingsURL string
	Enquiries   []DigestLine
	Responses   []DigestLine
	Comments    []DigestLine
}

// Empty reports whether the digest has nothing to announce.
func (d DigestEmailData) Empty() bool {
	return len(d.Enquiries)+len(d.Responses)+len(d.Comments) == 0
}

// BuildDigestEmail creates the digest with both HTML and text bodies.
func BuildDigestEmail(data DigestEmailData) Email {
	return Email{
		To:       "", // Set by caller
		Subject:  fmt.Sprintf("New publications on %s", data.SiteName),
		TextBody: buildDigestText(data),
		HTMLBody: buildDigestHTML(data),
	}
}

func buildDigestText(data DigestEmailData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Newly published on %s:\n", data.SiteName))

	section := func(title string, lines []DigestLine) {
		if len(lines) == 0 {
			return
		}
		buf.WriteString("\n" + title + "\n")
		for _, l := range lines {
			buf.WriteString(fmt.Sprintf("  - %s%s%s\n    %s\n", l.Prefix, l.LinkText, l.Suffix, l.URL))
		}
	}
	section("Enquiries", data.Enquiries)
	section("Responses", data.Responses)
	section("Comments", data.Comments)

	buf.WriteString("\nYou receive this because you opted into updates.\n")
	buf.WriteString("Manage email settings: " + data.SettingsURL + "\n")
	return buf.String()
}

var digestHTML = template.Must(template.New("digest").Funcs(template.FuncMap{
	"section": func(title string, lines []DigestLine) map[string]any {
		return map[string]any{"Title": title, "Lines": lines}
	},
}).Parse(digestHTMLTemplate))

func buildDigestHTML(data DigestEmailData) string {
	var buf bytes.Buffer
	_ = digestHTML.Execute(&buf, data)
	return buf.String()
}

const digestHTMLTemplate = `{{define "section"}}{{if .Lines}}
                <tr>
                  <td style="padding: 16px 0 8px 0; font-weight: 600; font-size: 16px; color: #1f2937;">{{.Title}}</td>
                </tr>{{range .Lines}}
                <tr>
                  <td style="padding: 8px 0; font-size: 14px; line-height: 1.4; color: #374151;">
                    {{.Prefix}}<a href="{{.URL}}" style="color: #4f46e5; text-decoration: underline;">{{.LinkText}}</a>{{.Suffix}}
                  </td>
                </tr>{{end}}{{end}}{{end}}<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>New publications</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <div style="display: none; max-height: 0; overflow: hidden; opacity: 0;">New {{.SiteName}} publications: enquiries, responses and comments.</div>
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 600px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
          <!-- Header -->
          <tr>
            <td style="padding: 24px 32px; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 20px; font-weight: 700; color: #1f2937;">Newly published on {{.SiteName}}</h1>
            </td>
          </tr>

          <!-- Content -->
          <tr>
            <td style="padding: 16px 32px 24px;">
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">{{template "section" (section "Enquiries" .Enquiries)}}{{template "section" (section "Responses" .Responses)}}{{template "section" (section "Comments" .Comments)}}
              </table>
            </td>
          </tr>

          <!-- Footer -->
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">
                You receive this because you opted into updates.
                <a href="{{.SettingsURL}}" style="color: #4f46e5;">Manage email settings</a>
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
