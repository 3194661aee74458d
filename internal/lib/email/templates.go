package email

import (
	"embed"
	"html/template"
)

// Template names an embedded email template under templates/.
type Template string

const (
	TemplateWelcome             Template = "welcome"
	TemplateVerifyEmail         Template = "verify_email"
	TemplatePasswordReset       Template = "password_reset"
	TemplateSubscriptionStarted Template = "subscription_started"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))
