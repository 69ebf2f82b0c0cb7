package components

import (
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestSparklineWindow(t *testing.T) {
	s := NewSparkline(4, "rps", lipgloss.NewStyle())
	for _, v := range []float64{1, 2, 3, 4, 8, 2} {
		s.Add(v)
	}
	assert.Equal(t, []float64{3, 4, 8, 2}, s.Data)
	assert.Equal(t, 8.0, s.Max)
	assert.Equal(t, "▃▄█▂", s.Graph())
}

func TestSparklinePadsAndHandlesZero(t *testing.T) {
	s := NewSparkline(5, "p95", lipgloss.NewStyle())
	s.Add(0)
	s.Add(-3)
	g := s.Graph()
	assert.Equal(t, 5, utf8.RuneCountInString(g))
	assert.Equal(t, "     ", g)
}
