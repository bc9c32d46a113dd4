// Package notify sends notifications through gotify or shoutrrr.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"
)

// Priority of a notification, as understood by gotify (0 to 10).
type Priority int

const titlePrefix = "debounce-go: "

// maxErrorBody is the number of bytes of a failed response kept in the error.
const maxErrorBody = 1024

// content prefixes the title and falls back to it when message is empty.
func content(title string, message string) (string, string) {
	if message == "" {
		message = title
	}
	return titlePrefix + title, message
}

// BaseNotifier sends a raw notification.
type BaseNotifier interface {
	Notify(ctx context.Context, title string, message string, priority Priority) error
}

type dummyNotifier struct{}

func (*dummyNotifier) Notify(
	ctx context.Context,
	title string,
	message string,
	priority Priority,
) error {
	return nil
}

// NewDummyNotifier returns a notifier doing nothing.
func NewDummyNotifier() BaseNotifier {
	return &dummyNotifier{}
}

type goNotifierMessage struct {
	Title    string `json:"title"`
	Priority int    `json:"priority"`
	Message  string `json:"message"`
}

type gonotifier struct {
	*http.Client
	endpoint string
	token    string
}

// NewGoNotifier returns a notifier posting to a gotify server.
func NewGoNotifier(client *http.Client, endpoint string, token string) BaseNotifier {
	return &gonotifier{
		Client:   client,
		endpoint: endpoint,
		token:    token,
	}
}

func (n *gonotifier) Notify(
	ctx context.Context,
	title string,
	message string,
	priority Priority,
) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	title, message = content(title, message)

	var bb bytes.Buffer
	if err := json.NewEncoder(&bb).Encode(goNotifierMessage{
		Title:    title,
		Message:  message,
		Priority: int(priority),
	}); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint+"/message", &bb)
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", n.token))

	resp, err := n.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		out, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("gotify: %s: %s", resp.Status, string(out))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

type shoutrrrNotifier struct {
	*router.ServiceRouter
}

// NewShoutrrrNotifier returns a notifier sending to the shoutrrr URLs.
func NewShoutrrrNotifier(urls ...string) (BaseNotifier, error) {
	r, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, err
	}
	return &shoutrrrNotifier{r}, nil
}

func (n *shoutrrrNotifier) Notify(
	ctx context.Context,
	title string,
	message string,
	priority Priority,
) error {
	title, message = content(title, message)
	errs := n.Send(message, &types.Params{
		"title":    title,
		"priority": strconv.Itoa(int(priority)),
	})
	return errors.Join(errs...)
}
