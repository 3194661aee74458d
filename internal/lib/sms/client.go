// Package sms sends text messages through the NetGSM HTTP API.
package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/coachpanel/backend/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const sendPath = "/sms/send/get"

// netgsmErrors maps NetGSM's numeric failure codes to readable reasons.
var netgsmErrors = map[string]string{
	"20": "message text is invalid or too long",
	"30": "invalid credentials or API access is not allowed from this IP",
	"40": "sender header is not registered",
	"50": "account cannot send via this channel",
	"51": "no IYS brand code for this account",
	"70": "invalid request parameters",
	"80": "sending limit exceeded",
	"85": "duplicate message limit exceeded",
}

// Client sends SMS through NetGSM.
type Client struct {
	http     *resty.Client
	userCode string
	password string
	header   string
	logger   *zerolog.Logger
}

// NewClient creates a NetGSM client. NETGSM_NUMBER is the account user code.
func NewClient(cfg *config.Config, logger *zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.SMS.BaseURL, "/")).
		SetTimeout(cfg.SMS.Timeout)

	return &Client{
		http:     httpClient,
		userCode: cfg.SMS.NetGSMNumber,
		password: cfg.SMS.NetGSMPassword,
		header:   cfg.SMS.Header,
		logger:   logger,
	}
}

// Send delivers message to phone (E.164) and returns NetGSM's job id.
func (c *Client) Send(ctx context.Context, phone, message string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"usercode":  c.userCode,
			"password":  c.password,
			"gsmno":     normalizePhone(phone),
			"message":   message,
			"msgheader": c.header,
			"dil":       "TR",
		}).
		Get(sendPath)
	if err != nil {
		return "", errors.Wrap(err, "netgsm request failed")
	}

	if resp.IsError() {
		return "", fmt.Errorf("netgsm returned HTTP %d", resp.StatusCode())
	}

	jobID, err := parseResponse(resp.String())
	if err != nil {
		return "", err
	}

	c.logger.Debug().Str("netgsm_job_id", jobID).Msg("sms accepted by provider")
	return jobID, nil
}

// parseResponse reads NetGSM's "<code> <jobid>" plain-text reply.
// Codes 00, 01 and 02 mean the message was accepted.
func parseResponse(body string) (string, error) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", errors.New("netgsm returned an empty response")
	}

	code := fields[0]
	switch code {
	case "00", "01", "02":
		if len(fields) < 2 {
			return "", fmt.Errorf("netgsm accepted the message without a job id: %q", body)
		}
		return fields[1], nil
	}

	if reason, ok := netgsmErrors[code]; ok {
		return "", fmt.Errorf("netgsm error %s: %s", code, reason)
	}
	return "", fmt.Errorf("netgsm unexpected response: %q", body)
}

// normalizePhone converts "+90 555 111 22 33" to "905551112233".
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
