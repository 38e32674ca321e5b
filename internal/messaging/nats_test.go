package messaging

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.subject, f.data = subj, data
	return f.err
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "rockhound.events.specimen.logged", Subject("specimen.logged"))
	assert.Equal(t, "rockhound.events.bad_type_", Subject("bad type*"))
	assert.Equal(t, "rockhound.events.unknown", Subject(""))
	assert.Equal(t, "rockhound.events.x", Subject(".x."))
}

func TestPublisher_Mirror(t *testing.T) {
	conn := &fakeConn{}
	p := &Publisher{conn: conn}

	require.NoError(t, p.Mirror(models.Event{ID: "e1", Type: "lab.fusion", Message: "boom"}))
	assert.Equal(t, "rockhound.events.lab.fusion", conn.subject)

	var got models.Event
	require.NoError(t, json.Unmarshal(conn.data, &got))
	assert.Equal(t, "e1", got.ID)

	conn.err = errors.New("closed")
	assert.Error(t, p.Mirror(models.Event{Type: "x"}))

	p.Close()
}
