package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/slack-go/slack"

	"raffle/internal/raffle"
)

// chatWorthy reports whether obs is announced in chat channels. Entries
// and draw requests are too frequent to be useful there.
func chatWorthy(obs raffle.Observation) bool {
	switch obs.Kind {
	case raffle.ObservationWinnerPicked, raffle.ObservationPayoutFailed, raffle.ObservationDrawCancelled:
		return true
	}
	return false
}

// SlackPublisher posts draw outcomes to a Slack incoming webhook.
type SlackPublisher struct {
	WebhookURL string
	Username   string

	post func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

func NewSlackPublisher(webhookURL, username string) *SlackPublisher {
	return &SlackPublisher{
		WebhookURL: strings.TrimSpace(webhookURL),
		Username:   strings.TrimSpace(username),
		post:       slack.PostWebhookContext,
	}
}

func (p *SlackPublisher) Publish(ctx context.Context, obs raffle.Observation) error {
	if p == nil || !chatWorthy(obs) {
		return nil
	}
	if p.WebhookURL == "" {
		return errors.New("slack webhook url is empty")
	}
	post := p.post
	if post == nil {
		post = slack.PostWebhookContext
	}
	return post(ctx, p.WebhookURL, &slack.WebhookMessage{
		Username: p.Username,
		Text:     describe(obs),
	})
}

type discordSession interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordPublisher sends draw outcomes to a Discord channel through the
// bot REST API. No gateway connection is opened.
type DiscordPublisher struct {
	ChannelID string

	session discordSession
}

func NewDiscordPublisher(botToken, channelID string) (*DiscordPublisher, error) {
	botToken = strings.TrimSpace(botToken)
	channelID = strings.TrimSpace(channelID)
	if botToken == "" || channelID == "" {
		return nil, errors.New("discord bot token and channel id are required")
	}
	s, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, err
	}
	return &DiscordPublisher{ChannelID: channelID, session: s}, nil
}

func (p *DiscordPublisher) Publish(ctx context.Context, obs raffle.Observation) error {
	if p == nil || p.session == nil || !chatWorthy(obs) {
		return nil
	}
	_, err := p.session.ChannelMessageSend(p.ChannelID, describe(obs), discordgo.WithContext(ctx))
	return err
}
