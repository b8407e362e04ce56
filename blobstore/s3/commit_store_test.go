package s3

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecsim/blobstore"
)

// fakeDDB is an in-memory DynamoDB with conditional puts.
type fakeDDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	uri := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := uri + ":" + version

	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(version)" {
		if _, exists := f.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}
	f.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	uri := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value
	var items []map[string]types.AttributeValue
	for _, item := range f.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == uri {
			items = append(items, item)
		}
	}
	version := func(item map[string]types.AttributeValue) uint64 {
		v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	slices.SortFunc(items, func(a, b map[string]types.AttributeValue) int {
		return int(version(b)) - int(version(a))
	})
	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func readCurrent(t *testing.T, store blobstore.BlobStore) string {
	t.Helper()
	data, err := blobstore.ReadAll(context.Background(), store, CurrentName)
	require.NoError(t, err)
	return string(data)
}

func TestCommitStore_NotFoundBeforeCommit(t *testing.T) {
	store := NewCommitStore(blobstore.NewMemoryStore(), newFakeDDB(), "vecsim-commits", "s3://b/p/")
	_, err := store.Open(context.Background(), CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestCommitStore_Commits(t *testing.T) {
	ctx := context.Background()
	base := blobstore.NewMemoryStore()
	store := NewCommitStore(base, newFakeDDB(), "vecsim-commits", "s3://b/p/")

	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Put(ctx, CurrentName, []byte(fmt.Sprintf("run-%02d", i))))
	}
	assert.Equal(t, "run-12", readCurrent(t, store))

	version, pointer, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), version)
	assert.Equal(t, "run-12", pointer)

	// CURRENT never reaches the base store.
	_, err = base.Open(ctx, CurrentName)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	// Everything else passes through.
	require.NoError(t, store.Put(ctx, "runs/x/ranked.bin", []byte("data")))
	names, err := store.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/x/ranked.bin"}, names)
}

func TestCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	store := NewCommitStore(blobstore.NewMemoryStore(), newFakeDDB(), "vecsim-commits", "s3://b/p/")
	require.NoError(t, store.Put(ctx, CurrentName, []byte("run-0")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Put(ctx, CurrentName, []byte(fmt.Sprintf("run-%d", i+1)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case err != ErrConcurrentModification:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Positive(t, successes)
	version, _, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1+successes), version)
}

func TestCommitStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newFakeDDB()
	a := NewCommitStore(blobstore.NewMemoryStore(), ddb, "vecsim-commits", "s3://bucket-a/")
	b := NewCommitStore(blobstore.NewMemoryStore(), ddb, "vecsim-commits", "s3://bucket-b/")

	require.NoError(t, a.Put(ctx, CurrentName, []byte("run-a")))
	require.NoError(t, b.Put(ctx, CurrentName, []byte("run-b")))

	assert.Equal(t, "run-a", readCurrent(t, a))
	assert.Equal(t, "run-b", readCurrent(t, b))
}
