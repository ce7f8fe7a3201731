// Package prompt supplies the system instructions sent with every Responses
// request, either the built-in policy assistant prompt or the contents of a
// file that is reloaded when it changes.
package prompt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Default is used when no instructions file is configured.
const Default = `You are the policy assistant for staff of a mental health charity.
Answer questions using only the policies and guides available through file search.
Quote the policy name and section you relied on.
If the documents do not cover the question, say so and suggest who to ask.
Keep answers short, use plain English and format them as markdown.`

// Loader holds the current instructions.
type Loader struct {
	path   string
	logger *zap.Logger

	mu   sync.RWMutex
	text string
}

// NewLoader reads path. An empty path yields a Loader that always returns
// Default.
func NewLoader(path string, logger *zap.Logger) (*Loader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Loader{path: path, logger: logger, text: Default}
	if path == "" {
		return l, nil
	}

	text, err := readInstructions(path)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("instructions file %s is empty", path)
	}
	l.text = text

	return l, nil
}

// Instructions returns the current instructions.
func (l *Loader) Instructions() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.text
}

// Path returns the watched file, or "" for the built-in prompt.
func (l *Loader) Path() string {
	return l.path
}

// Watch reloads the file on every write until ctx is done. It returns once
// the watcher is registered. For a Loader without a file it does nothing.
func (l *Loader) Watch(ctx context.Context) error {
	if l.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating instructions watcher: %w", err)
	}

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching instructions dir: %w", err)
	}

	go l.watch(ctx, watcher)
	return nil
}

func (l *Loader) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(l.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			l.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("instructions watcher error", zap.Error(err))
		}
	}
}

// reload keeps the previous text when the file is unreadable or empty, which
// happens mid-save with truncating editors.
func (l *Loader) reload() {
	text, err := readInstructions(l.path)
	if err != nil {
		l.logger.Warn("failed to reload instructions", zap.String("path", l.path), zap.Error(err))
		return
	}
	if text == "" {
		return
	}

	l.mu.Lock()
	changed := l.text != text
	l.text = text
	l.mu.Unlock()

	if changed {
		l.logger.Info("instructions reloaded", zap.String("path", l.path), zap.Int("length", len(text)))
	}
}

func readInstructions(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading instructions: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
