package service

import (
	"bytes"
	"fmt"
	"html/template"
)

func circleInvitationEmailTemplate(inviterName, circleName, description, inviteURL, appName string) (string, string) {
	subject := fmt.Sprintf("%s invited you to %s on %s", inviterName, circleName, appName)

	about := ""
	if description != "" {
		about = fmt.Sprintf("\nAbout this circle:\n%s\n", description)
	}

	body := fmt.Sprintf(`Hi,

%s invited you to join the circle "%s" on %s. Members of a circle can see the photos and albums shared with it.
%s
Open this link to accept or decline:
%s

If you don't know %s, you can ignore this email.

Best,
The %s Team`, inviterName, circleName, appName, about, inviteURL, inviterName, appName)

	return subject, body
}

var circleInvitationHTML = template.Must(template.New("circle_invitation").Parse(`<p>Hi,</p>
<p>{{.Inviter}} invited you to join the circle <strong>{{.Circle}}</strong> on {{.App}}. Members of a circle can see the photos and albums shared with it.</p>
{{if .About}}<blockquote>{{.About}}</blockquote>
{{end}}<p><a href="{{.URL}}">Accept or decline the invitation</a></p>
<p>If you don't know {{.Inviter}}, you can ignore this email.</p>
<p>Best,<br />The {{.App}} Team</p>
`))

// circleInvitationEmailHTML renders the HTML part. aboutHTML must already
// be sanitized markdown output.
func circleInvitationEmailHTML(inviterName, circleName, aboutHTML, inviteURL, appName string) (string, error) {
	var buf bytes.Buffer
	err := circleInvitationHTML.Execute(&buf, struct {
		Inviter string
		Circle  string
		About   template.HTML
		URL     string
		App     string
	}{
		Inviter: inviterName,
		Circle:  circleName,
		About:   template.HTML(aboutHTML),
		URL:     inviteURL,
		App:     appName,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func welcomeEmailTemplate(name, appURL, appName string) (string, string) {
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Your account is ready. Upload your first photos, create albums and share them with the people closest to you:
%s

Best,
The %s Team`, name, appURL, appName)

	return subject, body
}
