package webapi

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWriterHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewSSEWriter(rec)
	sw.Init()

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.True(t, rec.Flushed)
}

func TestSSEWriterEventFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewSSEWriter(rec)
	sw.Init()

	require.NoError(t, sw.WriteEvent(map[string]string{"status": "running"}))
	require.NoError(t, sw.WriteEvent(map[string]int{"seq": 2}))

	assert.Equal(t, "data: {\"status\":\"running\"}\n\ndata: {\"seq\":2}\n\n", rec.Body.String())
}

func TestSSEWriterMarshalError(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewSSEWriter(rec)

	err := sw.WriteEvent(make(chan int))
	assert.ErrorContains(t, err, "marshal event")
}
