package mongorun_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentforge/agentforge/persistence/mongorun"
)

type fakeClient struct {
	upsertFn func(ctx context.Context, rec mongorun.Record) error
	loadFn   func(ctx context.Context, processID string) (mongorun.Record, error)
}

func (f *fakeClient) UpsertRun(ctx context.Context, rec mongorun.Record) error {
	return f.upsertFn(ctx, rec)
}

func (f *fakeClient) LoadRun(ctx context.Context, processID string) (mongorun.Record, error) {
	return f.loadFn(ctx, processID)
}

func TestNewStoreRequiresClient(t *testing.T) {
	_, err := mongorun.NewStore(mongorun.Options{})
	require.EqualError(t, err, "mongorun: client is required")
}

func TestUpsertRequiresProcessID(t *testing.T) {
	store, err := mongorun.NewStore(mongorun.Options{Client: &fakeClient{}})
	require.NoError(t, err)
	err = store.Upsert(context.Background(), mongorun.Record{})
	require.EqualError(t, err, "mongorun: process id is required")
}

func TestUpsertDelegatesToClient(t *testing.T) {
	rec := mongorun.Record{ProcessID: "p1", Status: "RUNNING"}
	var got mongorun.Record
	client := &fakeClient{upsertFn: func(ctx context.Context, r mongorun.Record) error {
		got = r
		return nil
	}}
	store, err := mongorun.NewStore(mongorun.Options{Client: client})
	require.NoError(t, err)

	require.NoError(t, store.Upsert(context.Background(), rec))
	require.Equal(t, rec, got)
}

func TestLoadDelegatesToClient(t *testing.T) {
	expected := mongorun.Record{ProcessID: "p1", Status: "COMPLETED"}
	client := &fakeClient{loadFn: func(ctx context.Context, processID string) (mongorun.Record, error) {
		require.Equal(t, "p1", processID)
		return expected, nil
	}}
	store, err := mongorun.NewStore(mongorun.Options{Client: client})
	require.NoError(t, err)

	actual, err := store.Load(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, expected, actual)
}

func TestLoadRequiresProcessID(t *testing.T) {
	store, err := mongorun.NewStore(mongorun.Options{Client: &fakeClient{}})
	require.NoError(t, err)
	_, err = store.Load(context.Background(), "")
	require.EqualError(t, err, "mongorun: process id is required")
}

func TestNewClientValidatesOptions(t *testing.T) {
	_, err := mongorun.NewClient(mongorun.ClientOptions{})
	require.EqualError(t, err, "mongorun: mongo client is required")
}
