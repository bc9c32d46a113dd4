package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Darkness4/debounce-go/notify"
	"github.com/Darkness4/debounce-go/utils/ptr"
	"github.com/stretchr/testify/require"
)

type sent struct {
	title    string
	message  string
	priority notify.Priority
}

type recordingNotifier struct {
	sent []sent
}

func (n *recordingNotifier) Notify(
	_ context.Context,
	title string,
	message string,
	priority notify.Priority,
) error {
	n.sent = append(n.sent, sent{title, message, priority})
	return nil
}

func TestFormatedNotifier(t *testing.T) {
	// Arrange
	base := &recordingNotifier{}
	n, err := notify.NewFormatedNotifier(base, notify.NotificationFormats{
		Fired: notify.NotificationFormat{
			Enabled: ptr.Ref(true),
			Title:   "{{ .Labels.team }}/{{ .Gate }}{{ if .Forced }} forced{{ end }}",
		},
	})
	require.NoError(t, err)
	ctx := context.Background()

	// Test
	require.NoError(t, n.NotifyConfigReloaded(ctx))
	require.NoError(t, n.NotifyFired(ctx, "build", map[string]string{"team": "infra"}, "a.go", true))
	require.NoError(t, n.NotifyFailed(ctx, "build", nil, errors.New("exit status 1")))

	// Assert
	require.Equal(t, []sent{
		{title: "config reloaded", priority: 10},
		{title: "infra/build forced", message: "a.go", priority: 7},
		{title: "build failed", message: "exit status 1", priority: 10},
	}, base.sent)
}

func TestFormatedNotifierDisabled(t *testing.T) {
	base := &recordingNotifier{}
	n, err := notify.NewFormatedNotifier(base, notify.NotificationFormats{
		Failed: notify.NotificationFormat{Enabled: ptr.Ref(false)},
	})
	require.NoError(t, err)

	require.NoError(t, n.NotifyFired(context.Background(), "build", nil, "a.go", false))
	require.NoError(t, n.NotifyFailed(context.Background(), "build", nil, errors.New("fail")))

	require.Empty(t, base.sent)
}

func TestFormatedNotifierInvalidTemplate(t *testing.T) {
	_, err := notify.NewFormatedNotifier(notify.NewDummyNotifier(), notify.NotificationFormats{
		Panicked: notify.NotificationFormat{Title: "{{ .Capture"},
	})
	require.Error(t, err)
}
