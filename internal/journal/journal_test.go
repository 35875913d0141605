package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/ifcsync/internal/core/conflict"
	"github.com/agenthands/ifcsync/internal/core/model"
)

func TestMessagesAreBounded(t *testing.T) {
	j := New(3, nil)
	for i := 0; i < 5; i++ {
		j.Botf("mensagem %d", i)
	}
	j.User("Explorando: 'Parede'")

	msgs := j.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "mensagem 3", msgs[0].Text)
	assert.Equal(t, SenderUser, msgs[2].Sender)
	assert.NotEmpty(t, msgs[2].ID)
	assert.NotEqual(t, msgs[1].ID, msgs[2].ID)
}

func TestStatusAndReport(t *testing.T) {
	j := New(0, nil)
	assert.Equal(t, StatusIdle, j.Status().Kind)

	j.SetStatus(StatusLoading, "Validando...")
	assert.Equal(t, Status{Kind: StatusLoading, Text: "Validando..."}, j.Status())

	s := conflict.Summarize([]model.ValidationResult{{Type: model.ResultSuccess, Message: "ok"}}, nil)
	j.SetReport(s)

	snap := j.Snapshot()
	require.NotNil(t, snap.Report)
	assert.Len(t, snap.Report.Successes, 1)
	assert.Equal(t, StatusLoading, snap.Status.Kind)
}

func TestSnapshotIsACopy(t *testing.T) {
	j := New(10, nil)
	j.Bot("a")
	snap := j.Snapshot()
	j.Bot("b")
	assert.Len(t, snap.Messages, 1)
	assert.Len(t, j.Messages(), 2)
}
