package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/slack-go/slack"

	"raffle/internal/raffle"
)

func TestSlackPublisher(t *testing.T) {
	var sent []*slack.WebhookMessage
	p := NewSlackPublisher(" https://hooks.slack.test/T/B/x ", "raffle")
	p.post = func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		if url != "https://hooks.slack.test/T/B/x" {
			t.Fatalf("unexpected url %q", url)
		}
		sent = append(sent, msg)
		return nil
	}

	if err := p.Publish(context.Background(), raffle.Observation{Kind: raffle.ObservationEntered, Round: 3}); err != nil {
		t.Fatalf("publish entered: %v", err)
	}
	if len(sent) != 0 {
		t.Fatalf("entries must not be posted")
	}

	obs := winnerObservation()
	if err := p.Publish(context.Background(), obs); err != nil {
		t.Fatalf("publish winner: %v", err)
	}
	if len(sent) != 1 || sent[0].Username != "raffle" {
		t.Fatalf("unexpected messages %#v", sent)
	}
	if !strings.Contains(sent[0].Text, obs.Winner.Hex()) {
		t.Fatalf("text missing winner: %q", sent[0].Text)
	}
}

func TestSlackPublisherWithoutURL(t *testing.T) {
	p := NewSlackPublisher("", "")
	if err := p.Publish(context.Background(), winnerObservation()); err == nil {
		t.Fatal("expected error for empty webhook url")
	}
}

type fakeDiscord struct {
	channel string
	content string
	err     error
}

func (d *fakeDiscord) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	d.channel = channelID
	d.content = content
	if d.err != nil {
		return nil, d.err
	}
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func TestDiscordPublisher(t *testing.T) {
	fake := &fakeDiscord{}
	p := &DiscordPublisher{ChannelID: "42", session: fake}

	obs := raffle.Observation{Kind: raffle.ObservationDrawCancelled, Round: 4, RequestID: "req-4"}
	if err := p.Publish(context.Background(), obs); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if fake.channel != "42" || !strings.Contains(fake.content, "req-4") {
		t.Fatalf("unexpected send channel=%q content=%q", fake.channel, fake.content)
	}

	fake.err = errors.New("rate limited")
	if err := p.Publish(context.Background(), winnerObservation()); err == nil {
		t.Fatal("expected send error")
	}
}

func TestNewDiscordPublisherValidates(t *testing.T) {
	if _, err := NewDiscordPublisher("", "42"); err == nil {
		t.Fatal("expected error without token")
	}
	if _, err := NewDiscordPublisher("token", " "); err == nil {
		t.Fatal("expected error without channel")
	}
}
