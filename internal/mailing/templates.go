package mailing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrTemplateNotFound is returned when loading or deleting an unknown
// template file.
var ErrTemplateNotFound = errors.New("template not found")

// Template is a saved reusable email template.
type Template struct {
	Name       string    `json:"name"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Filename   string    `json:"filename,omitempty"`
}

// TemplateStore persists templates as JSON files in a directory. Saving a
// template with an existing name overwrites it in place, preserving its
// creation time.
type TemplateStore struct {
	dir string
	mu  sync.Mutex
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// NewTemplateStore creates the store, making the directory if needed.
func NewTemplateStore(dir string) (*TemplateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating template dir: %w", err)
	}
	return &TemplateStore{dir: dir}, nil
}

// Save writes a template to disk and returns it with its filename set.
func (ts *TemplateStore) Save(name, subject, body, senderName string) (*Template, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	filename := unsafeNameChars.ReplaceAllString(name, "_") + ".json"
	path := filepath.Join(ts.dir, filename)

	now := time.Now()
	tpl := &Template{
		Name:       name,
		Subject:    subject,
		Body:       body,
		SenderName: senderName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if existing, err := ts.read(filename); err == nil {
		tpl.CreatedAt = existing.CreatedAt
	}

	data, err := json.MarshalIndent(tpl, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing template: %w", err)
	}

	tpl.Filename = filename
	return tpl, nil
}

// Load reads one template by filename.
func (ts *TemplateStore) Load(filename string) (*Template, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.read(filename)
}

func (ts *TemplateStore) read(filename string) (*Template, error) {
	// Callers pass filenames from HTTP paths; never let them escape the dir.
	filename = filepath.Base(filename)
	data, err := os.ReadFile(filepath.Join(ts.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	tpl := &Template{}
	if err := json.Unmarshal(data, tpl); err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", filename, err)
	}
	tpl.Filename = filename
	return tpl, nil
}

// List returns all templates, most recently updated first. Unreadable files
// are skipped.
func (ts *TemplateStore) List() ([]*Template, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entries, err := os.ReadDir(ts.dir)
	if err != nil {
		return nil, err
	}

	templates := make([]*Template, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		tpl, err := ts.read(entry.Name())
		if err != nil {
			continue
		}
		templates = append(templates, tpl)
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].UpdatedAt.After(templates[j].UpdatedAt)
	})
	return templates, nil
}

// Delete removes a template by filename.
func (ts *TemplateStore) Delete(filename string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	path := filepath.Join(ts.dir, filepath.Base(filename))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrTemplateNotFound
	}
	return os.Remove(path)
}
