package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password_reset"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>{{.Heading}}</h2>
  <p>Hi {{.Name}},</p>
  <p>{{.Intro}}</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
  <p>This code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.</p>
  <p>ByBench</p>
</body>
</html>`))

type otpView struct {
	Heading string
	Name    string
	Intro   string
	Code    string
	Minutes int
}

// OTPMessage renders the code email for the given purpose.
func OTPMessage(to, name, code string, purpose Purpose, ttl time.Duration) (Message, error) {
	view := otpView{Name: name, Code: code, Minutes: int(ttl.Minutes())}
	var subject string
	switch purpose {
	case PurposePasswordReset:
		subject = "Reset your ByBench password"
		view.Heading = "Password reset"
		view.Intro = "Use the code below to reset your password."
	default:
		subject = "Verify your ByBench account"
		view.Heading = "Welcome to ByBench"
		view.Intro = "Use the code below to verify your email address."
	}

	var buf bytes.Buffer
	if err := otpTemplate.Execute(&buf, view); err != nil {
		return Message{}, fmt.Errorf("render otp email: %w", err)
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}
