// Package catalog reads test definitions from a YAML file and loads them into
// a store.
package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/mocktest-backend/internal/model"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// File is the top-level document of a catalog file.
type File struct {
	Tests []TestDef `yaml:"tests"`
}

// TestDef describes one test and its ordered questions.
type TestDef struct {
	ID              string        `yaml:"id"`
	Title           string        `yaml:"title"`
	Description     string        `yaml:"description"`
	TestType        string        `yaml:"test_type"`
	ExamType        string        `yaml:"exam_type"`
	DurationMinutes int           `yaml:"duration_minutes"`
	Active          *bool         `yaml:"active"`
	Questions       []QuestionDef `yaml:"questions"`
}

// QuestionDef describes one question. Marks and negative marks fall back to
// the bank defaults when omitted.
type QuestionDef struct {
	ID            string                         `yaml:"id"`
	Text          model.BilingualText            `yaml:"text"`
	Options       map[string]model.BilingualText `yaml:"options"`
	CorrectOption string                         `yaml:"correct_option"`
	Marks         *int                           `yaml:"marks"`
	NegativeMarks *float64                       `yaml:"negative_marks"`
	ImageURL      string                         `yaml:"image_url"`
	Explanation   model.BilingualText            `yaml:"explanation"`
	Section       string                         `yaml:"section"`
	Difficulty    string                         `yaml:"difficulty"`
}

// Entry is a validated test ready to be stored.
type Entry struct {
	Test      model.Test
	Questions []model.TestQuestion
}

// Saver persists one test with its questions.
type Saver interface {
	SaveTest(ctx context.Context, t *model.Test, questions []model.TestQuestion) error
}

// Invalidator drops cached copies of a stored test.
type Invalidator interface {
	Invalidate(ctx context.Context, testID uuid.UUID) error
}

// LoadFile parses and validates the catalog at path.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a catalog document.
func Parse(r io.Reader) ([]Entry, error) {
	var doc File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	entries := make([]Entry, 0, len(doc.Tests))
	seen := make(map[uuid.UUID]bool, len(doc.Tests))
	for i := range doc.Tests {
		e, err := doc.Tests[i].build()
		if err != nil {
			return nil, fmt.Errorf("tests[%d]: %w", i, err)
		}
		if seen[e.Test.ID] {
			return nil, fmt.Errorf("tests[%d]: duplicate test id %s", i, e.Test.ID)
		}
		seen[e.Test.ID] = true
		entries = append(entries, *e)
	}
	return entries, nil
}

// deriveID parses raw, or derives a stable id from name so reseeding the same
// file updates rather than duplicates.
func deriveID(raw, name string) (uuid.UUID, error) {
	if raw != "" {
		return uuid.Parse(raw)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mocktest:"+name)), nil
}

func (d *TestDef) build() (*Entry, error) {
	if d.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if d.DurationMinutes <= 0 {
		return nil, fmt.Errorf("duration_minutes must be positive")
	}
	id, err := deriveID(d.ID, "test/"+d.Title)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}

	test := model.Test{
		ID:              id,
		Title:           d.Title,
		Description:     d.Description,
		TestType:        d.TestType,
		ExamType:        d.ExamType,
		DurationMinutes: d.DurationMinutes,
		IsActive:        d.Active == nil || *d.Active,
		CreatedAt:       time.Now().UTC(),
	}
	if test.TestType == "" {
		test.TestType = "MOCK"
	}

	questions := make([]model.TestQuestion, 0, len(d.Questions))
	for i := range d.Questions {
		q, err := d.Questions[i].build(fmt.Sprintf("test/%s/q/%d", d.Title, i+1))
		if err != nil {
			return nil, fmt.Errorf("questions[%d]: %w", i, err)
		}
		questions = append(questions, model.TestQuestion{Question: *q, Order: i + 1})
		test.TotalMarks += q.Marks
	}
	test.TotalQuestions = len(questions)
	return &Entry{Test: test, Questions: questions}, nil
}

func (d *QuestionDef) build(name string) (*model.Question, error) {
	if d.Text.English == "" {
		return nil, fmt.Errorf("text.english is required")
	}
	id, err := deriveID(d.ID, name)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}

	q := &model.Question{
		ID:            id,
		Text:          d.Text,
		Options:       make(map[model.OptionKey]model.BilingualText, len(d.Options)),
		CorrectOption: model.OptionKey(d.CorrectOption),
		Marks:         model.DefaultMarks,
		NegativeMarks: model.DefaultNegativeMarks,
		ImageURL:      d.ImageURL,
		Explanation:   d.Explanation,
		Section:       d.Section,
		Difficulty:    d.Difficulty,
	}
	for raw, text := range d.Options {
		k := model.OptionKey(raw)
		if !k.Valid() {
			return nil, fmt.Errorf("option %q is not one of A, B, C, D", raw)
		}
		q.Options[k] = text
	}
	if !q.CorrectOption.Valid() || !q.HasOption(q.CorrectOption) {
		return nil, fmt.Errorf("correct_option %q is not an offered option", d.CorrectOption)
	}
	if d.Marks != nil {
		if *d.Marks <= 0 {
			return nil, fmt.Errorf("marks must be positive")
		}
		q.Marks = *d.Marks
	}
	if d.NegativeMarks != nil {
		if *d.NegativeMarks < 0 {
			return nil, fmt.Errorf("negative_marks must not be negative")
		}
		q.NegativeMarks = *d.NegativeMarks
	}
	return q, nil
}

// Seed stores every entry through saver, a few at a time.
func Seed(ctx context.Context, saver Saver, entries []Entry) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range entries {
		e := &entries[i]
		g.Go(func() error {
			if err := saver.SaveTest(gctx, &e.Test, e.Questions); err != nil {
				return fmt.Errorf("save test %q: %w", e.Test.Title, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Apply seeds entries and then invalidates their cached copies so readers
// observe the new rows, including deactivations, before the cache TTL runs out.
func Apply(ctx context.Context, saver Saver, cache Invalidator, entries []Entry) error {
	if err := Seed(ctx, saver, entries); err != nil {
		return err
	}
	for i := range entries {
		if err := cache.Invalidate(ctx, entries[i].Test.ID); err != nil {
			return fmt.Errorf("invalidate test %q: %w", entries[i].Test.Title, err)
		}
	}
	return nil
}
