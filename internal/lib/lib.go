// Package lib holds integrations that do not belong to a single layer:
// transactional email (Resend), SMS (NetGSM), background jobs (asynq)
// and small shared helpers.
package lib
