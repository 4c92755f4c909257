package driver

import (
	"context"
	"fmt"
	"log/slog"

	"socialcron/internal/core"
)

// redditDriver drives the Reddit Android app through a UI-automation
// session.
type redditDriver struct {
	sess   *session
	logger *slog.Logger
}

func (d *redditDriver) Login(ctx context.Context, creds core.Credentials) error {
	if err := d.sess.click(ctx, "login_button"); err != nil {
		return err
	}
	if err := d.sess.typeText(ctx, "username", creds.Username); err != nil {
		return err
	}
	if err := d.sess.typeText(ctx, "password", creds.Password); err != nil {
		return err
	}
	if err := d.sess.click(ctx, "login"); err != nil {
		return err
	}
	// The home feed appearing is the login confirmation.
	if _, err := d.sess.waitForElement(ctx, "home_feed"); err != nil {
		return fmt.Errorf("home feed not visible after login: %w", err)
	}
	d.logger.Debug("reddit login confirmed")
	return nil
}

func (d *redditDriver) Post(ctx context.Context, content core.Content) error {
	if len(content.Subreddits) == 0 {
		return fmt.Errorf("post has no target subreddit")
	}
	// Navigate to the subreddit.
	if err := d.sess.click(ctx, "subreddit_search"); err != nil {
		return err
	}
	if err := d.sess.typeText(ctx, "search_bar", content.Subreddits[0]); err != nil {
		return err
	}
	if err := d.sess.click(ctx, "search_result"); err != nil {
		return err
	}

	if err := d.sess.click(ctx, "create_post_button"); err != nil {
		return err
	}
	if err := d.sess.typeText(ctx, "post_title", content.Title); err != nil {
		return err
	}
	if err := d.sess.typeText(ctx, "post_text", content.Text); err != nil {
		return err
	}
	for _, media := range content.Media {
		if err := d.sess.click(ctx, "add_media_button"); err != nil {
			return err
		}
		if err := d.sess.typeText(ctx, "media_path", media); err != nil {
			return err
		}
	}
	return d.sess.click(ctx, "post_submit")
}

func (d *redditDriver) Comment(ctx context.Context, target, text string) error {
	if err := d.sess.click(ctx, "post_"+target); err != nil {
		return err
	}
	if err := d.sess.click(ctx, "comment_button"); err != nil {
		return err
	}
	if err := d.sess.typeText(ctx, "comment_text", text); err != nil {
		return err
	}
	return d.sess.click(ctx, "comment_submit")
}

func (d *redditDriver) Close() error {
	return d.sess.close()
}
