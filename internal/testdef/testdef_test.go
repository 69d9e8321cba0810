package testdef_test

import (
	"encoding/json"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/oralread/internal/level"
	"github.com/MrWong99/oralread/internal/testdef"
)

func loadFixture(t *testing.T) *testdef.Test {
	t.Helper()
	b, err := os.ReadFile("testdata/placement.yaml")
	require.NoError(t, err)
	def, err := testdef.ParseYAML(b)
	require.NoError(t, err)
	return def
}

func TestParseYAML_Fixture(t *testing.T) {
	t.Parallel()

	def := loadFixture(t)
	assert.Equal(t, "placement", def.ID)
	require.Len(t, def.Stages, 5)

	kinds := []testdef.Kind{
		testdef.KindLetters, testdef.KindLetters, testdef.KindSentences,
		testdef.KindWordList, testdef.KindPassage,
	}
	for i, k := range kinds {
		assert.Equal(t, k, def.Stages[i].Kind(), "stage %d", i)
	}

	sentences, ok := def.Stages[2].Content.(testdef.Sentences)
	require.True(t, ok)
	assert.Equal(t, "I see a cat.", sentences.Items[0].Text)

	words, ok := def.Stages[3].Content.(testdef.WordList)
	require.True(t, ok)
	pool, ok := words.Words(level.Primer)
	require.True(t, ok)
	assert.Contains(t, pool, "said")
	_, ok = words.Words(level.Level6)
	assert.False(t, ok)

	passage, ok := def.Stages[4].Content.(testdef.Passage)
	require.True(t, ok)
	pl, ok := passage.ForLevel(level.Level1)
	require.True(t, ok)
	assert.Equal(t, "The Garden", pl.Title)
	assert.Equal(t, []string{"plants grow", "they grow tall"}, pl.Questions[1].Answers())
}

func TestJSON_RoundTrip(t *testing.T) {
	t.Parallel()

	def := loadFixture(t)
	b, err := json.Marshal(def)
	require.NoError(t, err)

	back, err := testdef.ParseJSON(b)
	require.NoError(t, err)
	assert.Equal(t, def, back)
}

func TestParseJSON_OriginalShape(t *testing.T) {
	t.Parallel()

	doc := `{
	  "id": "t1",
	  "stages": [
	    {"id": "letters_common", "type": "letter_recognition", "items": ["a", "b"]},
	    {"id": "sentence_filter", "type": "sentence_reading", "items": [{"text": "I can run."}]},
	    {"id": "words", "type": "word_list", "levels": {"primer": ["was", "are"]}},
	    {"id": "story", "type": "oral_reading", "levels": [
	      {"levelId": "primer", "title": "Run", "text": "I can run.",
	       "questions": [{"question": "What can I do?", "answer": "run"}]}
	    ]}
	  ]
	}`
	def, err := testdef.ParseJSON([]byte(doc))
	require.NoError(t, err)
	require.Len(t, def.Stages, 4)
	assert.Equal(t, testdef.Letters{Items: []string{"a", "b"}}, def.Stages[0].Content)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown type", doc: `{"id":"x","stages":[{"id":"s","type":"spelling","items":["a"]}]}`},
		{name: "unknown level key", doc: `{"id":"x","stages":[{"id":"s","type":"word_list","levels":{"level_9":["a"]}}]}`},
		{name: "passage levels as map", doc: `{"id":"x","stages":[{"id":"s","type":"oral_reading","levels":{"primer":["a"]}}]}`},
		{name: "missing id", doc: `{"stages":[{"id":"s","type":"letter_recognition","items":["a"]}]}`},
		{name: "empty items", doc: `{"id":"x","stages":[{"id":"s","type":"letter_recognition","items":[]}]}`},
		{name: "passage without text", doc: `{"id":"x","stages":[{"id":"s","type":"oral_reading","levels":[{"levelId":"primer","text":""}]}]}`},
		{name: "duplicate stage id", doc: `{"id":"x","stages":[{"id":"s","type":"letter_recognition","items":["a"]},{"id":"s","type":"letter_recognition","items":["b"]}]}`},
		{name: "no stages", doc: `{"id":"x","stages":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := testdef.ParseJSON([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestPrepare_ShufflesExceptOrdered(t *testing.T) {
	t.Parallel()

	def := loadFixture(t)
	rng := rand.New(rand.NewPCG(1, 2))
	got := def.Prepare(rng, []string{"sentence_filter"})

	// The source is untouched.
	assert.Equal(t, loadFixture(t), def)

	orig := def.Stages[2].Content.(testdef.Sentences)
	prepared := got.Stages[2].Content.(testdef.Sentences)
	assert.Equal(t, orig.Items, prepared.Items, "ordered stage must keep its order")

	letters := got.Stages[1].Content.(testdef.Letters)
	assert.ElementsMatch(t, []string{"b", "c", "d"}, letters.Items)
}

func TestDraw(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 7))
	pool := []string{"a", "b", "c", "d", "e"}
	got := testdef.Draw(rng, pool, 3)
	assert.Len(t, got, 3)
	assert.Subset(t, pool, got)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, pool)

	all := testdef.Draw(rng, pool, 10)
	assert.ElementsMatch(t, pool, all)
}

func TestQuestion_Answers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{name: "variants", answer: " park , the park,, ", want: []string{"park", "the park"}},
		{name: "hint with comma", answer: "plants grow (detail, inference)", want: []string{"plants grow"}},
		{name: "hint between variants", answer: "a cat (detail), the cat", want: []string{"a cat", "the cat"}},
		{name: "only hint", answer: "(inference)", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, testdef.Question{Answer: tt.answer}.Answers())
		})
	}
}

func TestVocabulary(t *testing.T) {
	t.Parallel()

	def := loadFixture(t)
	assert.Equal(t, []string{"the", "a", "and"}, def.Vocabulary(3))

	all := def.Vocabulary(0)
	assert.Contains(t, all, "cat")
	assert.Contains(t, all, "garden")
	assert.Contains(t, all, "leo's")
	assert.NotContains(t, all, "cat.")

	seen := make(map[string]bool)
	for _, w := range all {
		assert.False(t, seen[w], "duplicate %q", w)
		seen[w] = true
	}
}
