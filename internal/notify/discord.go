package notify

import (
	"context"
	"net/http"
)

// discordUsername overrides the webhook's display name.
const discordUsername = "RWA Discovery"

// DiscordSender posts announcements to a Discord channel webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

type discordPayload struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: newHTTPClient()}
}

// Send renders title in bold above message.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	return postJSON(ctx, d.client, d.Name(), d.webhookURL, discordPayload{
		Username: discordUsername,
		Content:  "**" + title + "**\n" + message,
	})
}

func (d *DiscordSender) Name() string { return "discord" }
