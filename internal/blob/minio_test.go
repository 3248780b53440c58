package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Spok95/course-tracker/internal/apperr"
)

func TestNewMinioStore_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewMinioStore(context.Background(), MinioOptions{Bucket: "lms"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = NewMinioStore(context.Background(), MinioOptions{Endpoint: "localhost:9000"})
	require.ErrorIs(t, err, apperr.ErrValidation)
}
