package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/boardfeed/internal/model"
	"github.com/amishk599/boardfeed/internal/retry"
)

// Ensure SlackReporter implements model.Reporter.
var _ model.Reporter = (*SlackReporter)(nil)

// maxListedFailures caps the failures quoted in one Slack message.
const maxListedFailures = 10

// SlackReporter posts run summaries to a Slack channel via Incoming Webhooks.
type SlackReporter struct {
	webhookURL string
	httpClient *http.Client
	clock      retry.Clock
	logger     *slog.Logger
}

// NewSlackReporter returns a reporter that posts each run to Slack.
func NewSlackReporter(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		httpClient: httpClient,
		clock:      retry.Wall,
		logger:     logger,
	}
}

// WithClock replaces the clock used to honour Retry-After.
func (s *SlackReporter) WithClock(c retry.Clock) *SlackReporter {
	s.clock = c
	return s
}

// Report sends the run summary as one Block Kit message. A 429 response is
// retried once after the advertised delay.
func (s *SlackReporter) Report(report model.Report) error {
	body, err := json.Marshal(buildPayload(report))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(body)
	if err != nil {
		return err
	}
	retried := false
	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		if err := retry.Sleep(context.Background(), s.clock, retryAfter); err != nil {
			return err
		}
		status, _, err = s.post(body)
		if err != nil {
			return fmt.Errorf("retry: %w", err)
		}
		retried = true
	}
	if status != http.StatusOK {
		if retried {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		return fmt.Errorf("slack returned %d", status)
	}

	s.logger.Info("slack report sent", "run_id", report.RunID, "retried", retried)
	return nil
}

func (s *SlackReporter) post(body []byte) (int, time.Duration, error) {
	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildPayload(r model.Report) slackPayload {
	title := "Job feed updated"
	if r.Fatal != "" {
		title = "Job feed run aborted"
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Site:*\n" + r.Site},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Discovered:*\n%d of %d advertised", r.Discovered, r.ExpectedTotal)},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Descriptions:*\n%d fetched, %d failed", r.Enriched, r.FetchFailures)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Pages:*\n%d", r.Pages)},
			},
		},
	}

	if r.Fatal != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Error:* " + r.Fatal},
		})
	}

	if len(r.Failures) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "*Failures (%d):*", len(r.Failures))
		for i, f := range r.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "\n… and %d more", len(r.Failures)-maxListedFailures)
				break
			}
			b.WriteString("\n• " + describeFailure(f))
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: b.String()},
		})
	}

	blocks = append(blocks, slackBlock{Type: "divider"})
	return slackPayload{Blocks: blocks}
}

func describeFailure(f model.Failure) string {
	parts := []string{"[" + string(f.Stage) + "]"}
	if f.JobID != "" {
		parts = append(parts, f.JobID)
	}
	if f.Field != "" {
		parts = append(parts, f.Field)
	}
	parts = append(parts, f.Message)
	return strings.Join(parts, " ")
}

// SendTestReport sends a sample report to verify the integration works.
func SendTestReport(r model.Reporter) error {
	now := time.Now()
	return r.Report(model.Report{
		StartedAt:     now.Add(-2 * time.Minute),
		FinishedAt:    now,
		Site:          "https://example.wd1.myworkdayjobs.com/en-US/Careers (test)",
		ExpectedTotal: 3,
		Pages:         1,
		Discovered:    3,
		Enriched:      2,
		Normalized:    3,
		FetchFailures: 1,
		Failures: []model.Failure{{
			Stage:   model.StageDetail,
			JobID:   "R-0000",
			Link:    "https://example.wd1.myworkdayjobs.com/en-US/Careers/job/R-0000",
			Message: "integration test entry",
		}},
	})
}
