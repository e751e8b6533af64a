// Package templates holds the compiled message templates: the inline
// ones declared in config and the *.tmpl files of an optional template
// directory, reloaded on change.
package templates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"

	"hookbot/internal/format"
	"hookbot/pkg/logx"
)

// Store resolves template names to compiled templates. Inline templates
// win over directory templates of the same name.
type Store struct {
	engine *format.Engine
	dir    string
	log    logx.Logger

	mu     sync.RWMutex
	inline map[string]*template.Template
	files  map[string]*template.Template
}

// New compiles the inline templates and, when dir is non-empty, loads
// every *.tmpl file under it. Inline compile errors are fatal; a broken
// file template is skipped with a warning so one bad file cannot take
// the directory down.
func New(engine *format.Engine, inline map[string]string, dir string, log logx.Logger) (*Store, error) {
	s := &Store{
		engine: engine,
		dir:    dir,
		log:    log,
		inline: make(map[string]*template.Template, len(inline)),
		files:  make(map[string]*template.Template),
	}
	for name, body := range inline {
		t, err := engine.Parse(name, body)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		s.inline[name] = t
	}
	if dir != "" {
		if err := s.reload(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Lookup returns the compiled template for name.
func (s *Store) Lookup(name string) (*template.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.inline[name]; ok {
		return t, true
	}
	t, ok := s.files[name]
	return t, ok
}

// Names lists every resolvable template name.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{}, len(s.inline)+len(s.files))
	out := make([]string, 0, len(s.inline)+len(s.files))
	for name := range s.inline {
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for name := range s.files {
		if _, dup := seen[name]; !dup {
			out = append(out, name)
		}
	}
	return out
}

// reload re-reads the whole directory. The swap is atomic under the
// lock so lookups never observe a half-loaded set.
func (s *Store) reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("templates dir %s: %w", s.dir, err)
	}
	files := make(map[string]*template.Template)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tmpl") {
			continue
		}
		body, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.log.Warn("template file unreadable", logx.String("file", e.Name()), logx.Err(err))
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".tmpl")
		t, err := s.engine.Parse(name, string(body))
		if err != nil {
			s.log.Warn("template file skipped", logx.String("file", e.Name()), logx.Err(err))
			continue
		}
		files[name] = t
	}
	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
	return nil
}

// Watch reloads the directory on filesystem changes until ctx is done.
// Events are debounced because editors fire several per save.
func (s *Store) Watch(ctx context.Context) error {
	if s.dir == "" {
		<-ctx.Done()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return err
	}

	const debounceWindow = 200 * time.Millisecond
	var timer *time.Timer
	fire := make(chan struct{}, 1)
	debounce := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceWindow, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			if err := s.reload(); err != nil {
				s.log.Warn("template reload failed", logx.Err(err))
			} else {
				s.log.Info("templates reloaded", logx.String("dir", s.dir))
			}
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasSuffix(ev.Name, ".tmpl") &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				s.log.Warn("template watch error", logx.Err(err))
			}
		}
	}
}
