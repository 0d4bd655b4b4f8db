package service_test

import (
	"context"
	"mangrat-go/internal/model"
	"mangrat-go/internal/service"
	"mangrat-go/pkg/tasks"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeachTaskProcessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ask(ctx, "1515", "histoire")
	require.NoError(t, err)

	p := service.NewTeachTaskProcessor(f.svc)
	require.NoError(t, p.Process(ctx, tasks.TeachTask{Question: "1515", Answer: "Marignan", Category: "histoire"}))

	res, err := f.svc.Ask(ctx, "1515", "history")
	require.NoError(t, err)
	assert.Equal(t, "Marignan", res.Reply)

	learned, err := f.queue.ListByStatus(ctx, model.StatusLearned)
	require.NoError(t, err)
	assert.Len(t, learned, 1)
}

func TestTeachTaskProcessor_DropsInvalidTask(t *testing.T) {
	f := newFixture(t)
	p := service.NewTeachTaskProcessor(f.svc)
	assert.NoError(t, p.Process(context.Background(), tasks.TeachTask{Question: "q"}))
	assert.NoError(t, p.Process(context.Background(), tasks.TeachTask{
		Question: strings.Repeat("x", model.MaxQuestionLength+1),
		Answer:   "a",
	}))
}
