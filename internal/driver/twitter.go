package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"socialcron/internal/core"
)

// twitterDriver drives the Twitter Android app through a UI-automation
// session.
type twitterDriver struct {
	sess   *session
	logger *slog.Logger
}

func (d *twitterDriver) Login(ctx context.Context, creds core.Credentials) error {
	if err := d.sess.click(ctx, "login_button"); err != nil {
		return err
	}
	if err := d.sess.typeText(ctx, "username_or_email", creds.Username); err != nil {
		return err
	}
	if err := d.sess.click(ctx, "next_button"); err != nil {
		return err
	}
	if err := d.sess.typeText(ctx, "password", creds.Password); err != nil {
		return err
	}
	if err := d.sess.click(ctx, "login_submit"); err != nil {
		return err
	}
	// The home timeline appearing is the login confirmation.
	if _, err := d.sess.waitForElement(ctx, "home_timeline"); err != nil {
		return fmt.Errorf("home timeline not visible after login: %w", err)
	}
	d.logger.Debug("twitter login confirmed")
	return nil
}

func (d *twitterDriver) Post(ctx context.Context, content core.Content) error {
	if err := d.sess.click(ctx, "compose_tweet"); err != nil {
		return err
	}
	if err := d.sess.typeText(ctx, "tweet_text", composeTweetText(content)); err != nil {
		return err
	}
	for _, media := range content.Media {
		if err := d.sess.click(ctx, "add_media"); err != nil {
			return err
		}
		if err := d.sess.typeText(ctx, "media_path", media); err != nil {
			return err
		}
	}
	return d.sess.click(ctx, "tweet_submit")
}

func (d *twitterDriver) Comment(ctx context.Context, target, text string) error {
	if err := d.sess.click(ctx, "tweet_"+target); err != nil {
		return err
	}
	if err := d.sess.click(ctx, "reply_button"); err != nil {
		return err
	}
	if err := d.sess.typeText(ctx, "reply_text", text); err != nil {
		return err
	}
	return d.sess.click(ctx, "reply_submit")
}

func (d *twitterDriver) Close() error {
	return d.sess.close()
}

// composeTweetText appends the hashtag list to the tweet body.
func composeTweetText(content core.Content) string {
	if len(content.Hashtags) == 0 {
		return content.Text
	}
	tags := make([]string, 0, len(content.Hashtags))
	for _, tag := range content.Hashtags {
		tags = append(tags, "#"+strings.TrimPrefix(tag, "#"))
	}
	return content.Text + " " + strings.Join(tags, " ")
}
