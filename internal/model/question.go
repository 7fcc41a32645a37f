package model

import (
	"github.com/google/uuid"
)

// OptionKey identifies one of the fixed answer options.
type OptionKey string

const (
	OptionA OptionKey = "A"
	OptionB OptionKey = "B"
	OptionC OptionKey = "C"
	OptionD OptionKey = "D"
)

// OptionKeys lists the option alphabet in presentation order.
var OptionKeys = []OptionKey{OptionA, OptionB, OptionC, OptionD}

// Valid reports whether k belongs to the option alphabet.
func (k OptionKey) Valid() bool {
	switch k {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// Language selects which text variant is served.
type Language string

const (
	LanguageEnglish Language = "ENGLISH"
	LanguageHindi   Language = "HINDI"
)

// ParseLanguage maps free-form input onto a Language, defaulting to English.
func ParseLanguage(raw string) Language {
	if Language(raw) == LanguageHindi {
		return LanguageHindi
	}
	return LanguageEnglish
}

// BilingualText holds the English text and an optional Hindi translation.
type BilingualText struct {
	English string `json:"english" yaml:"english"`
	Hindi   string `json:"hindi,omitempty" yaml:"hindi,omitempty"`
}

// In returns the text for lang, falling back to English when no translation exists.
func (b BilingualText) In(lang Language) string {
	if lang == LanguageHindi && b.Hindi != "" {
		return b.Hindi
	}
	return b.English
}

// Empty reports whether neither variant carries text.
func (b BilingualText) Empty() bool {
	return b.English == "" && b.Hindi == ""
}

// Default marking applied when a question does not set its own.
const (
	DefaultMarks         = 1
	DefaultNegativeMarks = 0.25
)

// Question is a single multiple-choice question from the question bank.
type Question struct {
	ID            uuid.UUID                   `json:"id"`
	Text          BilingualText               `json:"text"`
	Options       map[OptionKey]BilingualText `json:"options"`
	CorrectOption OptionKey                   `json:"correct_option"`
	Marks         int                         `json:"marks"`
	NegativeMarks float64                     `json:"negative_marks"`
	ImageURL      string                      `json:"image_url,omitempty"`
	Explanation   BilingualText               `json:"explanation"`
	Section       string                      `json:"section,omitempty"`
	Difficulty    string                      `json:"difficulty,omitempty"`
}

// HasOption reports whether the question offers option k.
func (q *Question) HasOption(k OptionKey) bool {
	text, ok := q.Options[k]
	return ok && !text.Empty()
}

// TestQuestion places a question at a position inside a test.
type TestQuestion struct {
	Question
	Order int `json:"order"`
}

// PaperOption is a single option rendered in the requested language.
type PaperOption struct {
	Key  OptionKey `json:"key"`
	Text string    `json:"text"`
}

// PaperQuestion is a question as served to the candidate: no answer key, no explanation.
type PaperQuestion struct {
	ID            uuid.UUID     `json:"id"`
	Number        int           `json:"number"`
	Text          string        `json:"text"`
	Options       []PaperOption `json:"options"`
	Marks         int           `json:"marks"`
	NegativeMarks float64       `json:"negative_marks"`
	ImageURL      string        `json:"image_url,omitempty"`
}

// ForPaper renders q for the candidate. number is the 1-based navigator position.
func (q *Question) ForPaper(number int, lang Language) PaperQuestion {
	options := make([]PaperOption, 0, len(OptionKeys))
	for _, k := range OptionKeys {
		if !q.HasOption(k) {
			continue
		}
		options = append(options, PaperOption{Key: k, Text: q.Options[k].In(lang)})
	}
	return PaperQuestion{
		ID:            q.ID,
		Number:        number,
		Text:          q.Text.In(lang),
		Options:       options,
		Marks:         q.Marks,
		NegativeMarks: q.NegativeMarks,
		ImageURL:      q.ImageURL,
	}
}

// Paper is the ordered question set of an attempt.
type Paper struct {
	AttemptID uuid.UUID       `json:"attempt_id"`
	Test      TestSummary     `json:"test"`
	Language  Language        `json:"language"`
	Questions []PaperQuestion `json:"questions"`
}
