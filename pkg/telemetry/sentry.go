// Package telemetry reports swallowed errors to Sentry.
package telemetry

import (
	"fmt"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"
)

// Options configures the Sentry client. An empty DSN disables reporting.
type Options struct {
	DSN         string
	Environment string
	Release     string
}

var apiKeyPattern = regexp.MustCompile(`(api_key=)[^&\s"]+`)

// Init configures the global Sentry hub. It reports whether reporting is
// enabled.
func Init(opts Options) (bool, error) {
	if opts.DSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          opts.Release,
		SampleRate:       1.0,
		AttachStacktrace: false,
		ServerName:       "",
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return false, fmt.Errorf("sentry initialization failed: %w", err)
	}
	return true, nil
}

// Flush waits for queued events to be sent.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// Scrub masks NASA API keys embedded in URLs.
func Scrub(s string) string {
	return apiKeyPattern.ReplaceAllString(s, "${1}[redacted]")
}

func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.ServerName = ""
	event.User = sentry.User{}
	event.Message = Scrub(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = Scrub(event.Exception[i].Value)
	}
	if event.Request != nil {
		event.Request.URL = Scrub(event.Request.URL)
		event.Request.QueryString = Scrub(event.Request.QueryString)
	}
	return event
}

// Reporter forwards errors to Sentry when enabled. The zero value drops them.
type Reporter struct {
	enabled bool
}

func NewReporter(enabled bool) *Reporter {
	return &Reporter{enabled: enabled}
}

// CaptureError sends err tagged with the component that swallowed it.
func (r *Reporter) CaptureError(err error, component string) {
	if r == nil || !r.enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetContext("error", map[string]any{
			"type": fmt.Sprintf("%T", err),
		})
		sentry.CaptureException(err)
	})
}
