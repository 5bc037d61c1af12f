package upstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePageShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		shape   envelopeShape
		records int
		hasMore *bool
	}{
		{"bare array", `[{"id":1},{"id":2}]`, shapeBareArray, 2, nil},
		{"pagination object", `{"data":[{"id":1}],"pagination":{"hasMore":true}}`, shapePaginationObject, 1, boolPtr(true)},
		{"top-level hasMore", `{"data":[{"id":1}],"hasMore":false}`, shapeTopLevelHasMore, 1, boolPtr(false)},
		{"pagination object wins over top-level", `{"data":[],"hasMore":true,"pagination":{"hasMore":false}}`, shapePaginationObject, 0, boolPtr(false)},
		{"pagination without hasMore falls back", `{"data":[{"id":1}],"pagination":{"page":1},"hasMore":true}`, shapeTopLevelHasMore, 1, boolPtr(true)},
		{"data only", `{"data":[{"id":1},{"id":2},{"id":3}]}`, shapeDataOnly, 3, nil},
		{"null data", ` {"data":null,"hasMore":false} `, shapeTopLevelHasMore, 0, boolPtr(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decodePage([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.shape, p.Shape, p.Shape.String())
			assert.Len(t, p.Records, tt.records)
			assert.Equal(t, tt.hasMore, p.HasMore)
		})
	}
}

func TestDecodePageRejectsUnknownShapes(t *testing.T) {
	for _, body := range []string{``, `"text"`, `{"items":[]}`, `{"data":{"id":1}}`, `[1,`} {
		_, err := decodePage([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestPageMore(t *testing.T) {
	full := page{Records: make([]json.RawMessage, 3)}
	assert.True(t, full.more(3))
	assert.False(t, full.more(4))

	assert.False(t, page{HasMore: boolPtr(true)}.more(3), "empty page always stops")
	assert.False(t, page{Records: make([]json.RawMessage, 3), HasMore: boolPtr(false)}.more(3))
	assert.True(t, page{Records: make([]json.RawMessage, 1), HasMore: boolPtr(true)}.more(3))
}

func boolPtr(b bool) *bool { return &b }
