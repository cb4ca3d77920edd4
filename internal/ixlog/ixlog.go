// This file is part of dwarfindex.
//
// dwarfindex is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// dwarfindex is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with dwarfindex.  If not, see <https://www.gnu.org/licenses/>.

// Package ixlog provides the tag-scoped logging used across the indexer,
// in the call shape of the teacher's own logger package (Log/Logf keyed
// by a short subsystem tag) but backed by log/slog fanned out with
// slog-multi, so a caller gets both a human-readable stream and a
// queryable in-memory ring buffer of recent lines.
package ixlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

const ringCapacity = 256

type ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func (r *ring) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) < ringCapacity {
		r.lines = append(r.lines, line)
		return
	}
	r.lines[r.next] = line
	r.next = (r.next + 1) % ringCapacity
	r.full = true
}

func (r *ring) snapshot(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ordered []string
	if !r.full {
		ordered = append(ordered, r.lines...)
	} else {
		ordered = append(ordered, r.lines[r.next:]...)
		ordered = append(ordered, r.lines[:r.next]...)
	}
	if n <= 0 || n >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-n:]
}

var buf = &ring{}

var logger = newLogger()

func newLogger() *slog.Logger {
	text := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	capture := &captureHandler{r: buf}
	handler := slogmulti.Fanout(text, capture)
	return slog.New(handler)
}

// captureHandler is a minimal slog.Handler that appends formatted records
// to the package ring buffer; it never filters on level so Recent() can
// still surface debug-level detail a caller asks for explicitly.
type captureHandler struct {
	r      *ring
	attrs  []slog.Attr
	groups []string
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, rec slog.Record) error {
	line := fmt.Sprintf("%s [%s] %s", rec.Time.Format("15:04:05.000"), rec.Level, rec.Message)
	for _, a := range h.attrs {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())
	}
	rec.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())
		return true
	})
	h.r.add(line)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{r: h.r, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...), groups: h.groups}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{r: h.r, attrs: h.attrs, groups: append(append([]string{}, h.groups...), name)}
}

// Logf logs a formatted message tagged with the given subsystem, the way
// the teacher's logger.Logf(tag, format, args...) does.
func Logf(tag, format string, args ...any) {
	logger.Info(fmt.Sprintf(format, args...), slog.String("tag", tag))
}

// Log logs an unformatted message tagged with the given subsystem.
func Log(tag, msg string) {
	logger.Info(msg, slog.String("tag", tag))
}

// Debugf logs at debug level - quiet by default, matching the teacher's
// restraint about steady-state tracing.
func Debugf(tag, format string, args ...any) {
	logger.Debug(fmt.Sprintf(format, args...), slog.String("tag", tag))
}

// Recent returns the last n formatted log lines (or all of them if n<=0),
// letting a caller inspect what happened during a failed Update without
// re-running it.
func Recent(n int) []string {
	return buf.snapshot(n)
}
