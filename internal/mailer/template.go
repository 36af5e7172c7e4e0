package mailer

import (
	"bytes"
	"html/template"
	"strings"
)

const confirmationSubject = "Confirm your email"

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <p>Hi {{.Username}},</p>
  <p>Thanks for signing up for Contacts Book. Please confirm your email address:</p>
  <p><a href="{{.Link}}">Confirm email</a></p>
  <p>The link is valid for 7 days. If you did not create an account, ignore this letter.</p>
</body>
</html>
`))

type confirmationData struct {
	Username string
	Link     string
}

// confirmationLink builds <baseURL>auth/confirmed_email/<token>.
func confirmationLink(baseURL, token string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + "auth/confirmed_email/" + token
}

func renderConfirmation(username, link string) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, confirmationData{Username: username, Link: link}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
