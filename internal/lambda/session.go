package lambda

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/alert"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/session"
)

// SessionSummary is the outcome of one dataset session.
type SessionSummary struct {
	Dataset   string `json:"dataset"`
	SessionID string `json:"sessionId,omitempty"`
	Files     int    `json:"files"`
	Failed    int    `json:"failed"`
	Errors    int    `json:"errors"`
}

// SessionResponse is returned by the session handler.
type SessionResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// DatasetsForEvent returns the configured datasets to run for an S3 event.
// With several datasets the source is split by dataset folder, so only the
// datasets named by the first key segment below the source prefix run. An
// event naming none of them, or an empty event, runs every dataset.
func DatasetsForEvent(configured []string, sourcePrefix string, ev events.S3Event) []string {
	if len(configured) <= 1 || len(ev.Records) == 0 {
		return configured
	}
	prefix := strings.Trim(sourcePrefix, "/")
	var out []string
	for _, rec := range ev.Records {
		key := rec.S3.Object.Key
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		key = strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
		name, _, _ := strings.Cut(key, "/")
		if slices.Contains(configured, name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return configured
	}
	// keep config order
	slices.SortFunc(out, func(a, b string) int {
		return slices.Index(configured, a) - slices.Index(configured, b)
	})
	return out
}

// HandleS3Event runs a session for each dataset touched by the event.
func HandleS3Event(ctx context.Context, d *Deps, ev events.S3Event) (SessionResponse, error) {
	var resp SessionResponse
	for _, name := range DatasetsForEvent(d.Config.Datasets, sourcePrefix(d.Config.Source), ev) {
		ds, err := d.Datasets.Lookup(name)
		if err != nil {
			return resp, err
		}
		r, err := d.Project.Runner(ds, d.Secret, d.Logger)
		if err != nil {
			return resp, err
		}
		report, err := r.Run(ctx)
		if err != nil {
			return resp, fmt.Errorf("%s session: %w", name, err)
		}
		if d.Alerts != nil {
			d.Alerts.Dispatch(ctx, alert.FromReport(name, report, time.Now()))
		}
		resp.Sessions = append(resp.Sessions, summarise(name, report))
	}
	return resp, nil
}

func summarise(name string, report *session.Report) SessionSummary {
	return SessionSummary{
		Dataset:   name,
		SessionID: report.SessionID,
		Files:     len(report.Files),
		Failed:    len(report.Failed()),
		Errors:    report.Errors.Len(),
	}
}

// sourcePrefix returns the key prefix of an s3:// source location.
func sourcePrefix(location string) string {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return ""
	}
	_, prefix, _ := strings.Cut(rest, "/")
	return prefix
}
