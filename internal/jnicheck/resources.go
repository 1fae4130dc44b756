package jnicheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/resources"
)

// Acquire records a runtime-owned resource (pinned elements, string chars)
// handed out by site.
func (c *Checker) Acquire(s *Context, res uintptr, site string) {
	c.resources.Acquire(res, site)
}

// Release forgets res and reports whether it was held. Call CheckFree first
// to classify a bad release.
func (c *Checker) Release(s *Context, res uintptr) bool {
	_, ok := c.resources.Release(res)
	return ok
}

// CheckFree verifies that res is currently held before it is released. A
// handle released recently is a double free; one never seen is an
// untracked free.
func (c *Checker) CheckFree(s *Context, res uintptr, site string) bool {
	if c.skip(s) {
		return true
	}
	switch c.resources.Status(res) {
	case resources.Tracked:
		return true
	case resources.Released:
		resources.Releases.WithLabelValues("double_free").Inc()
		acquired, _ := c.resources.ReleasedSite(res)
		return c.report(s, diag.CheckDoubleFree, site, 0, res,
			"double free of VM resource %#x (acquired by %s) in %s", res, acquired, site)
	default:
		resources.Releases.WithLabelValues("untracked").Inc()
		return c.report(s, diag.CheckUntrackedFree, site, 0, res,
			"free of untracked VM resource %#x in %s", res, site)
	}
}

// LeakReport is the outcome of a shutdown leak audit.
type LeakReport struct {
	RunID string           `json:"run_id"`
	Time  time.Time        `json:"time"`
	Leaks []resources.Leak `json:"leaks"`
}

// Clean reports whether nothing leaked.
func (r LeakReport) Clean() bool { return len(r.Leaks) == 0 }

// Leaks returns the resources held right now, ordered by handle.
func (c *Checker) Leaks() []resources.Leak {
	return c.resources.Leaks()
}

// AuditLeaks lists every resource still held. When any are, it reports one
// resource_leak diagnostic naming each resource and its acquiring site. It
// returns true when nothing leaked. Auditing is allowed in every phase.
func (c *Checker) AuditLeaks(ctx context.Context) (LeakReport, bool) {
	_, span := c.tracer.Start(ctx, "jnicheck.audit_leaks")
	defer span.End()

	report := LeakReport{RunID: c.runID, Time: c.now(), Leaks: c.resources.Leaks()}
	span.SetAttributes(attribute.Int("leaks", len(report.Leaks)))
	c.logger.LeakAudit(len(report.Leaks))
	if report.Clean() {
		return report, true
	}

	parts := make([]string, len(report.Leaks))
	for i, l := range report.Leaks {
		parts[i] = fmt.Sprintf("%#x by %s", l.Resource, l.Site)
	}
	c.report(nil, diag.CheckResourceLeak, "shutdown", 0, 0,
		"VM resource leak: %d not released (%s)", len(report.Leaks), strings.Join(parts, ", "))
	return report, false
}
