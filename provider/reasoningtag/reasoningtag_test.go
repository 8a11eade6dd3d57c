package reasoningtag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractorSingleChunk(t *testing.T) {
	e := NewExtractor()
	reasoning, message := e.Feed("<think>pondering</think>the answer is 4")
	require.Equal(t, "pondering", reasoning)
	require.Equal(t, "the answer is 4", message)
}

func TestExtractorTagSplitAcrossChunks(t *testing.T) {
	e := NewExtractor()
	var reasoning, message string
	for _, chunk := range []string{"<thi", "nk>po", "ndering</th", "ink>answer"} {
		r, m := e.Feed(chunk)
		reasoning += r
		message += m
	}
	require.Equal(t, "pondering", reasoning)
	require.Equal(t, "answer", message)
}

func TestExtractorNoTagsIsAllMessage(t *testing.T) {
	e := NewExtractor()
	reasoning, message := e.Feed("just an answer")
	require.Empty(t, reasoning)
	require.Equal(t, "just an answer", message)
}

func TestExtractorAngleBracketNotATagIsNotSwallowed(t *testing.T) {
	e := NewExtractor()
	reasoning, message := e.Feed("x < y and y > z")
	require.Empty(t, reasoning)
	require.Equal(t, "x < y and y > z", message)
}
