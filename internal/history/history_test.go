package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndRecent(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)

	require.NoError(t, s.Add(Record{JobID: "j1", Filename: "a.pdf", Pages: 2, Level: "med", BytesBefore: 1000, BytesAfter: 400}))
	require.NoError(t, s.Add(Record{JobID: "j2", Filename: "b.pdf", Pages: 1, Level: "max", BytesBefore: 500, BytesAfter: 100}))

	recs, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "j2", recs[0].JobID)
	assert.Equal(t, int64(400), recs[1].BytesAfter)
}

func TestRecentLimit(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Add(Record{JobID: "j", Filename: "x.pdf"}))
	}
	recs, err := s.Recent(3)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}
