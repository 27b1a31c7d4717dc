package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureKeepsExistingID(t *testing.T) {
	ctx := WithID(context.Background(), "cid-1")
	ctx, id := Ensure(ctx)
	assert.Equal(t, "cid-1", id)
	assert.Equal(t, "cid-1", FromContext(ctx))
}

func TestEnsureMintsULID(t *testing.T) {
	ctx, id := Ensure(context.Background())
	assert.Len(t, id, 26)
	assert.Equal(t, id, FromContext(ctx))

	parsed, ok := Parse(id)
	assert.True(t, ok)
	assert.Equal(t, id, parsed)
}

func TestParseRejectsMalformedIDs(t *testing.T) {
	_, ok := Parse("not-a-ulid")
	assert.False(t, ok)

	_, ok = Parse("")
	assert.False(t, ok)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvVar, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", FromContext(FromEnv(context.Background())))

	t.Setenv(EnvVar, "garbage")
	assert.Empty(t, FromContext(FromEnv(context.Background())))
}

func TestWithIDIgnoresBlank(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithID(ctx, "  "))
	assert.Empty(t, FromContext(nil))
}
