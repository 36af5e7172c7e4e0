package avatar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGravatar_Resolve(t *testing.T) {
	g := NewGravatar()

	// md5("myemailaddress@example.com") from the Gravatar docs.
	got, err := g.Resolve(context.Background(), "  MyEmailAddress@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "https://www.gravatar.com/avatar/0bc83cb571cd1c50ba6f3e8a78ef1346", got)
}

func TestGravatar_ResolveWithOptions(t *testing.T) {
	g := NewGravatar(WithSize(200), WithFallback("identicon"))

	got, err := g.Resolve(context.Background(), "myemailaddress@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://www.gravatar.com/avatar/0bc83cb571cd1c50ba6f3e8a78ef1346?d=identicon&s=200", got)
}

func TestGravatar_EmptyEmail(t *testing.T) {
	_, err := NewGravatar().Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyEmail)
}
