// Package content loads the quiz catalog and the product copy from YAML.
package content

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the content document: questions, badge images and message texts.
type File struct {
	Questions []Question `yaml:"questions"`
	Badges    Badges     `yaml:"badges"`
	Texts     Texts      `yaml:"texts"`
}

// Question is a catalog entry. ID defaults to the 1-based position in the file.
type Question struct {
	ID          int64    `yaml:"id"`
	Text        string   `yaml:"text"`
	Explanation string   `yaml:"explanation"`
	Pictures    []string `yaml:"pictures"`
	Answers     []Answer `yaml:"answers"`
}

// Answer is one choice of a question.
type Answer struct {
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

// Badges maps every score tier to an image path relative to the media directory.
type Badges struct {
	Novice    string `yaml:"novice"`
	Confident string `yaml:"confident"`
	AllSeeing string `yaml:"all_seeing"`
}

// Paths lists the configured badge images.
func (b Badges) Paths() []string {
	var out []string
	for _, p := range []string{b.Novice, b.Confident, b.AllSeeing} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads and validates a content file. Missing texts fall back to DefaultTexts.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a content document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("content: parse: %w", err)
	}
	f.Texts = f.Texts.withDefaults(DefaultTexts())
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) normalize() error {
	if len(f.Questions) == 0 {
		return fmt.Errorf("content: no questions")
	}
	var prev int64
	for i := range f.Questions {
		q := &f.Questions[i]
		if q.ID == 0 {
			q.ID = int64(i + 1)
		}
		if q.ID <= prev {
			return fmt.Errorf("content: question ids must increase, got %d after %d", q.ID, prev)
		}
		prev = q.ID
		q.Text = strings.TrimSpace(q.Text)
		q.Explanation = strings.TrimSpace(q.Explanation)
		if q.Text == "" {
			return fmt.Errorf("content: question %d has no text", q.ID)
		}
		if len(q.Answers) == 0 {
			return fmt.Errorf("content: question %d has no answers", q.ID)
		}
		correct := 0
		for _, a := range q.Answers {
			if strings.TrimSpace(a.Text) == "" {
				return fmt.Errorf("content: question %d has an empty answer", q.ID)
			}
			if a.Correct {
				correct++
			}
		}
		if correct == 0 {
			return fmt.Errorf("content: question %d has no correct answer", q.ID)
		}
	}
	return nil
}
