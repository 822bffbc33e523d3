package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/config"
	"github.com/nurseryfinder/nurseryfinder-backend/pkg/logger"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeConsumer struct {
	err    error
	called bool
}

func (f *fakeConsumer) Run(context.Context) error {
	f.called = true
	return f.err
}

func newWorkerService(t *testing.T, db pinger, consumer runner) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:            &config.Config{},
		Logger:            logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		DB:                db,
		Redis:             fakePinger{},
		PubSub:            fakePinger{},
		DashboardConsumer: consumer,
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresConsumer(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config: &config.Config{},
		Logger: logger.Nop(),
		DB:     fakePinger{},
		Redis:  fakePinger{},
		PubSub: fakePinger{},
	})
	require.Error(t, err)
}

func TestRunStopsWhenDependencyIsDown(t *testing.T) {
	consumer := &fakeConsumer{}
	svc := newWorkerService(t, fakePinger{err: errors.New("refused")}, consumer)

	err := svc.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database ping failed")
	assert.False(t, consumer.called)
}

func TestRunReturnsConsumerError(t *testing.T) {
	consumer := &fakeConsumer{err: errors.New("subscription deleted")}
	svc := newWorkerService(t, fakePinger{}, consumer)

	err := svc.Run(context.Background())

	require.EqualError(t, err, "subscription deleted")
	assert.True(t, consumer.called)
}
