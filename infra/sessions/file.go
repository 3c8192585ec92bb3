// Package sessions reads raw charging sessions exported by the data client.
package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kilianp07/evsim/core/model"
	"github.com/kilianp07/evsim/infra/logger"
)

// ErrNoSessions is returned when no dump exists for a site.
var ErrNoSessions = errors.New("no session dump for site")

// FileSource serves sessions from JSON dumps. Path is either one file
// holding every session, or a directory with <site>.json files or
// <site>/*.json files.
type FileSource struct {
	Path string
	log  logger.Logger
}

// NewFileSource returns a source rooted at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, log: logger.New("sessions")}
}

// Sessions returns the records of site whose connection time falls in w.
// Records without a connection time are kept so the queue builder can
// report them.
func (s *FileSource) Sessions(ctx context.Context, site string, w model.Window) ([]model.RawSession, error) {
	files, err := s.files(site)
	if err != nil {
		return nil, err
	}
	var out []model.RawSession
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := readDump(f)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			if r.ConnectionTime.IsZero() || w.Contains(r.ConnectionTime.Time) {
				out = append(out, r)
			}
		}
	}
	s.log.Debugw("sessions loaded", map[string]any{"site": site, "window": w.Label(), "count": len(out), "files": len(files)})
	return out, nil
}

func (s *FileSource) files(site string) ([]string, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("session source: %w", err)
	}
	if !info.IsDir() {
		return []string{s.Path}, nil
	}
	site = strings.ToLower(site)
	single := filepath.Join(s.Path, site+".json")
	if _, err := os.Stat(single); err == nil {
		return []string{single}, nil
	}
	matches, err := filepath.Glob(filepath.Join(s.Path, site, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoSessions, site, s.Path)
	}
	sort.Strings(matches)
	return matches, nil
}

// readDump decodes either a bare array or an API page {"_items": [...]}.
func readDump(path string) ([]model.RawSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	var recs []model.RawSession
	if len(data) > 0 && data[0] == '{' {
		var page struct {
			Items []model.RawSession `json:"_items"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return page.Items, nil
	}
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return recs, nil
}
