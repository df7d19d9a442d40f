package text_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"qaai/apps/backend/internal/text"
)

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, text.Split("", 800, 120))
	assert.Nil(t, text.Split("   \n  ", 800, 120))
}

func TestSplit_SingleChunk(t *testing.T) {
	chunks := text.Split("short text", 800, 120)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestSplit_BoundedAndContiguous(t *testing.T) {
	long := strings.Repeat("employment contract terms and conditions ", 100)
	chunks := text.Split(long, 200, 40)

	assert.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "chunk indexes are contiguous from zero")
		assert.LessOrEqual(t, len(c.Text), 200)
		assert.NotEmpty(t, c.Text)
	}
}

func TestSplit_OverlapCarriesText(t *testing.T) {
	long := strings.Repeat("alpha beta gamma delta epsilon ", 50)
	chunks := text.Split(long, 150, 60)
	assert.Greater(t, len(chunks), 1)

	// The tail of each chunk reappears at the head of the next.
	for i := 0; i < len(chunks)-1; i++ {
		tailWords := strings.Fields(chunks[i].Text)
		last := tailWords[len(tailWords)-1]
		assert.Contains(t, chunks[i+1].Text, last)
	}
}

func TestSplit_WordsStayIntact(t *testing.T) {
	long := strings.Repeat("jurisdiction ", 100)
	chunks := text.Split(long, 100, 20)
	for _, c := range chunks {
		for _, w := range strings.Fields(c.Text) {
			assert.Equal(t, "jurisdiction", w)
		}
	}
}

func TestSplit_SectionRef(t *testing.T) {
	doc := "Article 15 Employees are entitled to annual leave. " +
		strings.Repeat("The employer shall keep records of leave taken. ", 20) +
		"Article 16 Termination requires written notice. " +
		strings.Repeat("Notice periods depend on length of service. ", 20)

	chunks := text.Split(doc, 300, 50)
	assert.Greater(t, len(chunks), 2)

	assert.Equal(t, "Article 15", chunks[0].SectionRef)
	assert.Equal(t, "Article 16", chunks[len(chunks)-1].SectionRef)
}

func TestSplit_SectionRefCaseNormalized(t *testing.T) {
	chunks := text.Split("SECTION 3A applies to regulated entities.", 800, 120)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "Section 3A", chunks[0].SectionRef)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b\nc d", text.Normalize("a  \tb\r\nc   d"))
}

func TestSplit_NoLoopOnDegenerateOverlap(t *testing.T) {
	// Overlap close to size must still terminate.
	long := strings.Repeat("x", 1000)
	chunks := text.Split(long, 100, 99)
	assert.NotEmpty(t, chunks)
}
