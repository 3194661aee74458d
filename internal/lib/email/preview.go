package email

// PreviewData holds sample values for every template, keyed by template name.
var PreviewData = map[Template]map[string]string{
	TemplateWelcome: {
		"UserFirstName": "John",
	},
	TemplateVerifyEmail: {
		"UserFirstName":    "John",
		"VerificationLink": "https://app.coachpanel.io/verify-email?token=preview",
	},
	TemplatePasswordReset: {
		"UserFirstName": "John",
		"ResetLink":     "https://app.coachpanel.io/reset-password?token=preview",
	},
	TemplateSubscriptionStarted: {
		"UserFirstName": "John",
		"PlanName":      "Pro",
		"Status":        "trialing",
		"PeriodEnd":     "15 March 2026",
	},
}
