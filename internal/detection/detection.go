// Package detection turns engine detection lines into quarantine actions.
package detection

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/zhengda-lu/antiv/internal/quarantine"
	"github.com/zhengda-lu/antiv/internal/scanner"
)

// DefaultDelimiter separates the path from the signature in clamscan output.
const DefaultDelimiter = ": "

// ErrParse is returned when a detection line does not yield a usable path.
var ErrParse = errors.New("unparseable detection line")

// Isolator moves a file out of harm's way.
type Isolator interface {
	Isolate(source string) (quarantine.Entry, error)
}

// Result is the outcome of handling one detection. Err is nil when the
// file was isolated.
type Result struct {
	RawLine   string           `json:"raw_line"`
	Path      string           `json:"path,omitempty"`
	Signature string           `json:"signature,omitempty"`
	Entry     quarantine.Entry `json:"entry"`
	Err       error            `json:"-"`
}

func (r Result) Isolated() bool { return r.Err == nil }

// ParsePath splits a detection line into the file path, which is the text
// before the first delimiter, and the signature name that follows it with
// foundMarker trimmed off. Empty arguments fall back to the clamscan defaults.
func ParsePath(raw, delimiter, foundMarker string) (path, signature string, err error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if foundMarker == "" {
		foundMarker = scanner.DefaultFoundMarker
	}
	idx := strings.Index(raw, delimiter)
	if idx < 0 {
		return "", "", fmt.Errorf("%w: no %q delimiter in %q", ErrParse, delimiter, raw)
	}

	path = raw[:idx]
	if strings.TrimSpace(path) == "" {
		return "", "", fmt.Errorf("%w: empty path in %q", ErrParse, raw)
	}
	if strings.ContainsRune(path, 0) || !filepath.IsAbs(path) {
		return "", "", fmt.Errorf("%w: malformed path %q", ErrParse, path)
	}

	signature = strings.TrimSpace(raw[idx+len(delimiter):])
	signature = strings.TrimSpace(strings.TrimSuffix(signature, foundMarker))
	return path, signature, nil
}

// Handler isolates the file named by each detection event. Failures are
// returned in the Result and never stop the caller.
type Handler struct {
	iso         Isolator
	delimiter   string
	foundMarker string
	log         *slog.Logger
}

// NewHandler parses detection lines with the engine's delimiter and found
// marker. Empty values use the clamscan defaults.
func NewHandler(iso Isolator, delimiter, foundMarker string, logger *slog.Logger) *Handler {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if foundMarker == "" {
		foundMarker = scanner.DefaultFoundMarker
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{iso: iso, delimiter: delimiter, foundMarker: foundMarker, log: logger}
}

// Handle processes a detection event. Other event kinds are ignored and
// return a zero Result with a nil error.
func (h *Handler) Handle(ev scanner.Event) Result {
	if ev.Kind != scanner.EventDetection {
		return Result{}
	}

	res := Result{RawLine: ev.RawLine}
	path, sig, err := ParsePath(ev.RawLine, h.delimiter, h.foundMarker)
	if err != nil {
		h.log.Warn("skipping detection", "line", ev.RawLine, "error", err)
		res.Err = err
		return res
	}
	res.Path, res.Signature = path, sig

	entry, err := h.iso.Isolate(path)
	if err != nil {
		h.log.Warn("failed to quarantine detected file", "path", path, "signature", sig, "error", err)
		res.Err = err
		return res
	}

	h.log.Info("detected file quarantined", "path", path, "signature", sig, "entry", entry.Name)
	res.Entry = entry
	return res
}
