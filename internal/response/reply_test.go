package response

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunksShortText(t *testing.T) {
	for _, text := range []string{"a", "привет", strings.Repeat("x", MaxMessageLen)} {
		chunks := slices.Collect(Chunks(text, MaxMessageLen))
		assert.Equal(t, []string{text}, chunks)
	}
}

func TestChunksEmpty(t *testing.T) {
	assert.Empty(t, slices.Collect(Chunks("", MaxMessageLen)))
}

func TestChunksLongText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		count int
	}{
		{name: "one over", text: strings.Repeat("a", MaxMessageLen+1), count: 2},
		{name: "exact multiple", text: strings.Repeat("b", MaxMessageLen*3), count: 3},
		{name: "cyrillic", text: strings.Repeat("я", MaxMessageLen*2+10), count: 3},
		{name: "mixed", text: strings.Repeat("ab€😀 ", 2000), count: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := slices.Collect(Chunks(tt.text, MaxMessageLen))
			require.Len(t, chunks, tt.count)

			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), MaxMessageLen)
				assert.NotEmpty(t, c)
			}
			for _, c := range chunks[:len(chunks)-1] {
				assert.Equal(t, MaxMessageLen, utf8.RuneCountInString(c))
			}
			assert.Equal(t, tt.text, strings.Join(chunks, ""))
		})
	}
}

func TestChunksNonPositiveSize(t *testing.T) {
	text := strings.Repeat("x", MaxMessageLen+1)

	for _, size := range []int{0, -1} {
		chunks := slices.Collect(Chunks(text, size))
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], MaxMessageLen)
		assert.Equal(t, "x", chunks[1])
	}
}

func TestChunksRestartable(t *testing.T) {
	text := strings.Repeat("0123456789", 1000)
	seq := Chunks(text, MaxMessageLen)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
}

func TestChunksEarlyStop(t *testing.T) {
	text := strings.Repeat("z", 10)

	var got []string
	for c := range Chunks(text, 3) {
		got = append(got, c)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"zzz", "zzz"}, got)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "image", KindImage.String())
	assert.Equal(t, "image_url", KindImageURL.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
