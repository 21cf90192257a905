package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"walletledger/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Embed colors
const (
	ColorSuccess = 0x57F287 // Green
	ColorDanger  = 0xED4245 // Red
	ColorWarning = 0xFEE75C // Yellow
)

// maxListedFailures caps how many failures are quoted in one alert
const maxListedFailures = 10

// maxFieldValueLength is the Discord limit for an embed field value, in characters
const maxFieldValueLength = 1024

// Notifier delivers maintenance summaries to administrators
type Notifier interface {
	NotifyMaintenance(ctx context.Context, event events.MaintenanceCompletedEvent) error
}

// webhookExecutor is the subset of *discordgo.Session used for webhook delivery
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts maintenance summaries to a Discord webhook
type DiscordNotifier struct {
	client      webhookExecutor
	webhookID   string
	token       string
	environment string
}

// NewDiscordNotifier creates a notifier for the given webhook. Webhook calls need no bot token.
func NewDiscordNotifier(webhookID, token, environment string) (*DiscordNotifier, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return newDiscordNotifier(session, webhookID, token, environment), nil
}

func newDiscordNotifier(client webhookExecutor, webhookID, token, environment string) *DiscordNotifier {
	return &DiscordNotifier{
		client:      client,
		webhookID:   webhookID,
		token:       token,
		environment: environment,
	}
}

// NotifyMaintenance posts one embed describing the run
func (n *DiscordNotifier) NotifyMaintenance(ctx context.Context, event events.MaintenanceCompletedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &discordgo.WebhookParams{
		Username: "walletledger",
		Embeds:   []*discordgo.MessageEmbed{buildMaintenanceEmbed(event, n.environment)},
	}

	if _, err := n.client.WebhookExecute(n.webhookID, n.token, false, params); err != nil {
		return fmt.Errorf("failed to execute webhook: %w", err)
	}
	return nil
}

func buildMaintenanceEmbed(event events.MaintenanceCompletedEvent, environment string) *discordgo.MessageEmbed {
	color := ColorSuccess
	status := "completed"
	if len(event.Failures) > 0 {
		color = ColorWarning
		status = "completed with failures"
	}
	if event.Processed == 0 && len(event.Failures) > 0 {
		color = ColorDanger
		status = "failed"
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Processed",
			Value:  fmt.Sprintf("%d", event.Processed),
			Inline: true,
		},
		{
			Name:   "Failures",
			Value:  fmt.Sprintf("%d", len(event.Failures)),
			Inline: true,
		},
		{
			Name:   "Duration",
			Value:  event.Duration.Round(time.Millisecond).String(),
			Inline: true,
		},
	}

	if len(event.Failures) > 0 {
		listed := event.Failures
		if len(listed) > maxListedFailures {
			listed = listed[:maxListedFailures]
		}
		var footer string
		if more := len(event.Failures) - len(listed); more > 0 {
			footer = fmt.Sprintf("\n...and %d more", more)
		}
		const fence = "```"
		budget := maxFieldValueLength - utf8.RuneCountInString(footer) - 2*len(fence) - 2
		details := fence + "\n" + truncateRunes(strings.Join(listed, "\n"), budget) + "\n" + fence + footer
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Details",
			Value: details,
		})
	}

	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("[%s] %s %s", environment, event.Task, status),
		Color:     color,
		Fields:    fields,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// NopNotifier drops every notification
type NopNotifier struct{}

func (NopNotifier) NotifyMaintenance(context.Context, events.MaintenanceCompletedEvent) error {
	return nil
}

// Subscribe forwards maintenance runs that reported failures to notifier
func Subscribe(bus *events.Bus, notifier Notifier) {
	bus.Subscribe(events.EventTypeMaintenanceCompleted, func(ctx context.Context, event events.Event) {
		completed, ok := event.(events.MaintenanceCompletedEvent)
		if !ok || len(completed.Failures) == 0 {
			return
		}

		if err := notifier.NotifyMaintenance(ctx, completed); err != nil {
			log.WithError(err).WithField("task", completed.Task).Error("Failed to send maintenance alert")
		}
	})
}

// truncateRunes shortens s to at most max runes, marking the cut with an ellipsis
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
