package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBilingualText(t *testing.T) {
	both := BilingualText{English: "Which is prime?", Hindi: "कौन सा अभाज्य है?"}
	englishOnly := BilingualText{English: "Which is prime?"}

	assert.Equal(t, "कौन सा अभाज्य है?", both.In(LanguageHindi))
	assert.Equal(t, "Which is prime?", both.In(LanguageEnglish))
	assert.Equal(t, "Which is prime?", englishOnly.In(LanguageHindi))
	assert.True(t, BilingualText{}.Empty())
	assert.False(t, englishOnly.Empty())
}

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, LanguageHindi, ParseLanguage("HINDI"))
	assert.Equal(t, LanguageEnglish, ParseLanguage("ENGLISH"))
	assert.Equal(t, LanguageEnglish, ParseLanguage(""))
	assert.Equal(t, LanguageEnglish, ParseLanguage("hindi"))
}

func TestQuestionForPaper(t *testing.T) {
	q := Question{
		ID:   uuid.New(),
		Text: BilingualText{English: "2 + 2", Hindi: "२ + २"},
		Options: map[OptionKey]BilingualText{
			OptionC: {English: "4", Hindi: "४"},
			OptionA: {English: "3"},
			OptionB: {},
		},
		CorrectOption: OptionC,
		Marks:         2,
		NegativeMarks: 0.5,
		Explanation:   BilingualText{English: "arithmetic"},
	}

	assert.True(t, q.HasOption(OptionA))
	assert.False(t, q.HasOption(OptionB))
	assert.False(t, q.HasOption(OptionD))

	p := q.ForPaper(4, LanguageHindi)
	assert.Equal(t, 4, p.Number)
	assert.Equal(t, "२ + २", p.Text)
	require.Len(t, p.Options, 2)
	assert.Equal(t, PaperOption{Key: OptionA, Text: "3"}, p.Options[0])
	assert.Equal(t, PaperOption{Key: OptionC, Text: "४"}, p.Options[1])
	assert.Equal(t, 2, p.Marks)
	assert.Equal(t, 0.5, p.NegativeMarks)
}
