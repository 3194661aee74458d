package email

import "context"

func (c *Client) SendWelcomeEmail(ctx context.Context, to, firstName string) error {
	return c.SendEmail(ctx, to, "Welcome to CoachPanel!", TemplateWelcome, map[string]string{
		"UserFirstName": firstName,
	})
}

func (c *Client) SendVerificationEmail(ctx context.Context, to, firstName, link string) error {
	return c.SendEmail(ctx, to, "Confirm your email address", TemplateVerifyEmail, map[string]string{
		"UserFirstName":    firstName,
		"VerificationLink": link,
	})
}

func (c *Client) SendPasswordResetEmail(ctx context.Context, to, firstName, link string) error {
	return c.SendEmail(ctx, to, "Reset your CoachPanel password", TemplatePasswordReset, map[string]string{
		"UserFirstName": firstName,
		"ResetLink":     link,
	})
}

// SendSubscriptionStartedEmail confirms a new subscription. periodEnd is
// already formatted for display.
func (c *Client) SendSubscriptionStartedEmail(ctx context.Context, to, firstName, planName, status, periodEnd string) error {
	return c.SendEmail(ctx, to, "Your CoachPanel subscription is active", TemplateSubscriptionStarted, map[string]string{
		"UserFirstName": firstName,
		"PlanName":      planName,
		"Status":        status,
		"PeriodEnd":     periodEnd,
	})
}
