package notify

import (
	"context"
	"strings"
	"text/template"

	"github.com/Darkness4/debounce-go/utils/ptr"
)

// NotificationFormats is a collection of formats for notifications.
type NotificationFormats struct {
	ConfigReloaded NotificationFormat `yaml:"configReloaded,omitempty"`
	Panicked       NotificationFormat `yaml:"panicked,omitempty"`
	Fired          NotificationFormat `yaml:"fired,omitempty"`
	Failed         NotificationFormat `yaml:"failed,omitempty"`
}

// NotificationFormat is a format for a notification.
type NotificationFormat struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Title    string `yaml:"title,omitempty"`
	Message  string `yaml:"message,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
}

// NotificationTemplates is a collection of templates for notifications.
type NotificationTemplates struct {
	ConfigReloaded NotificationTemplate
	Panicked       NotificationTemplate
	Fired          NotificationTemplate
	Failed         NotificationTemplate
}

// NotificationTemplate is a template for a notification.
type NotificationTemplate struct {
	TitleTemplate   *template.Template
	MessageTemplate *template.Template
}

// DefaultNotificationFormats is the default notification formats.
var DefaultNotificationFormats = NotificationFormats{
	ConfigReloaded: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "config reloaded",
		Message:  "",
		Priority: 10,
	},
	Panicked: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "panicked",
		Message:  "{{ .Capture }}",
		Priority: 10,
	},
	Fired: NotificationFormat{
		Enabled:  ptr.Ref(false),
		Title:    "{{ .Gate }} ran{{ if .Forced }} (max wait reached){{ end }}",
		Message:  "{{ .Payload }}",
		Priority: 7,
	},
	Failed: NotificationFormat{
		Enabled:  ptr.Ref(true),
		Title:    "{{ .Gate }} failed",
		Message:  "{{ .Error }}",
		Priority: 10,
	},
}

func (old *NotificationFormat) applyNotificationFormatDefault(
	newFormat NotificationFormat,
) {
	if newFormat.Enabled != nil {
		old.Enabled = newFormat.Enabled
	}
	if newFormat.Title != "" {
		old.Title = newFormat.Title
	}
	if newFormat.Message != "" {
		old.Message = newFormat.Message
	}
	if newFormat.Priority != 0 {
		old.Priority = newFormat.Priority
	}
}

func applyNotificationFormatsDefault(newFormat NotificationFormats) NotificationFormats {
	formats := DefaultNotificationFormats
	formats.ConfigReloaded.applyNotificationFormatDefault(newFormat.ConfigReloaded)
	formats.Panicked.applyNotificationFormatDefault(newFormat.Panicked)
	formats.Fired.applyNotificationFormatDefault(newFormat.Fired)
	formats.Failed.applyNotificationFormatDefault(newFormat.Failed)
	return formats
}

func initializeTemplate(name string, format NotificationFormat) (NotificationTemplate, error) {
	title, err := template.New(name).Parse(format.Title)
	if err != nil {
		return NotificationTemplate{}, err
	}
	message, err := template.New(name).Parse(format.Message)
	if err != nil {
		return NotificationTemplate{}, err
	}
	return NotificationTemplate{
		TitleTemplate:   title,
		MessageTemplate: message,
	}, nil
}

func initializeTemplates(formats NotificationFormats) (t NotificationTemplates, err error) {
	if t.ConfigReloaded, err = initializeTemplate("ConfigReloaded", formats.ConfigReloaded); err != nil {
		return t, err
	}
	if t.Panicked, err = initializeTemplate("Panicked", formats.Panicked); err != nil {
		return t, err
	}
	if t.Fired, err = initializeTemplate("Fired", formats.Fired); err != nil {
		return t, err
	}
	if t.Failed, err = initializeTemplate("Failed", formats.Failed); err != nil {
		return t, err
	}
	return t, nil
}

// FormatedNotifier is a notifier that formats the notifications.
type FormatedNotifier struct {
	BaseNotifier
	NotificationFormats
	NotificationTemplates
}

// NewFormatedNotifier creates a new FormatedNotifier.
//
// The formats are merged with DefaultNotificationFormats. An error is
// returned if a template cannot be parsed.
func NewFormatedNotifier(
	notifier BaseNotifier,
	formats NotificationFormats,
) (*FormatedNotifier, error) {
	formats = applyNotificationFormatsDefault(formats)
	templates, err := initializeTemplates(formats)
	if err != nil {
		return nil, err
	}
	return &FormatedNotifier{
		BaseNotifier:          notifier,
		NotificationFormats:   formats,
		NotificationTemplates: templates,
	}, nil
}

func (n *FormatedNotifier) send(
	ctx context.Context,
	format NotificationFormat,
	tmpl NotificationTemplate,
	data any,
) error {
	if format.Enabled == nil || !*format.Enabled {
		return nil
	}
	var titleSB strings.Builder
	var messageSB strings.Builder
	if err := tmpl.TitleTemplate.Execute(&titleSB, data); err != nil {
		return err
	}
	if err := tmpl.MessageTemplate.Execute(&messageSB, data); err != nil {
		return err
	}
	return n.Notify(
		ctx,
		titleSB.String(),
		messageSB.String(),
		Priority(format.Priority),
	)
}

// NotifyConfigReloaded sends a notification that the config was reloaded.
func (n *FormatedNotifier) NotifyConfigReloaded(ctx context.Context) error {
	return n.send(
		ctx,
		n.NotificationFormats.ConfigReloaded,
		n.NotificationTemplates.ConfigReloaded,
		struct{}{},
	)
}

// NotifyPanicked sends a notification that the program panicked.
func (n *FormatedNotifier) NotifyPanicked(ctx context.Context, capture any) error {
	return n.send(
		ctx,
		n.NotificationFormats.Panicked,
		n.NotificationTemplates.Panicked,
		struct {
			Capture any
		}{
			Capture: capture,
		},
	)
}

// NotifyFired sends a notification that a gate ran its action.
func (n *FormatedNotifier) NotifyFired(
	ctx context.Context,
	gate string,
	labels map[string]string,
	payload string,
	forced bool,
) error {
	return n.send(
		ctx,
		n.NotificationFormats.Fired,
		n.NotificationTemplates.Fired,
		struct {
			Gate    string
			Labels  map[string]string
			Payload string
			Forced  bool
		}{
			Gate:    gate,
			Labels:  labels,
			Payload: payload,
			Forced:  forced,
		},
	)
}

// NotifyFailed sends a notification that the action of a gate failed.
func (n *FormatedNotifier) NotifyFailed(
	ctx context.Context,
	gate string,
	labels map[string]string,
	err error,
) error {
	return n.send(
		ctx,
		n.NotificationFormats.Failed,
		n.NotificationTemplates.Failed,
		struct {
			Gate   string
			Labels map[string]string
			Error  error
		}{
			Gate:   gate,
			Labels: labels,
			Error:  err,
		},
	)
}
