package minio

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/pkg/errors"
)

func newTestStore(t *testing.T) (ObjectStore, *fakeAPI) {
	t.Helper()
	api := newFakeAPI("drugex-models")
	return NewObjectStore(newClient(api, &MinIOConfig{}, nil), nil), api
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "runs/r1/agent.json", ObjectKey("runs", "r1", "agent.json"))
	assert.Equal(t, "runs/r1", ObjectKey("/runs/", "r1"))
}

func TestObjectStore_PutGet(t *testing.T) {
	store, api := newTestStore(t)
	ctx := context.Background()

	info, err := store.Put(ctx, "runs/r1/agent.json", []byte(`{"v":1}`), "application/json", map[string]string{"epoch": "3"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)
	assert.Equal(t, "3", api.meta["runs/r1/agent.json"]["epoch"])

	data, err := store.Get(ctx, "runs/r1/agent.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))

	ok, err := store.Exists(ctx, "runs/r1/agent.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestObjectStore_Missing(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	assert.True(t, errors.IsCode(err, errors.ErrCodeObjectNotFound))

	ok, err := store.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectStore_Errors(t *testing.T) {
	store, api := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "", []byte("x"), "", nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	api.err = stderrors.New("500 internal")
	_, err = store.Put(ctx, "k", []byte("x"), "", nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorage))
	_, err = store.Get(ctx, "k")
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorage))
	_, err = store.Exists(ctx, "k")
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorage))
	assert.True(t, errors.IsCode(store.Delete(ctx, "k"), errors.ErrCodeStorage))
}

func TestObjectStore_ListAndDelete(t *testing.T) {
	store, api := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"runs/a/agent.json", "runs/b/agent.json", "env/model.json"} {
		_, err := store.Put(ctx, k, []byte("x"), "", nil)
		require.NoError(t, err)
	}

	objs, err := store.List(ctx, "runs/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "runs/a/agent.json", objs[0].Key)
	assert.Equal(t, "runs/b/agent.json", objs[1].Key)

	require.NoError(t, store.Delete(ctx, "runs/a/agent.json"))
	objs, err = store.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Len(t, objs, 1)

	api.listErr = stderrors.New("timeout")
	_, err = store.List(ctx, "runs/")
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorage))
}

func TestObjectStore_ClosedClient(t *testing.T) {
	api := newFakeAPI("drugex-models")
	client := newClient(api, &MinIOConfig{}, nil)
	store := NewObjectStore(client, nil)
	require.NoError(t, client.Close())

	_, err := store.Get(context.Background(), "k")
	assert.Equal(t, ErrMinIOClientClosed, err)
}

//Personal.AI order the ending
