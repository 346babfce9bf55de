package msgheaders_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/product-catalog/pkg/correlationid"
	"github.com/tuanvumaihuynh/product-catalog/pkg/msgheaders"
)

func TestHeadersRoundTrip(t *testing.T) {
	ctx := correlationid.NewContext(context.Background(), "corr-123")

	headers := msgheaders.BuildHeaders(ctx)
	assert.Equal(t, "corr-123", headers[correlationid.Header])

	restored := msgheaders.ExtractContextFromHeaders(context.Background(), headers)
	id, ok := correlationid.FromContext(restored)
	require.True(t, ok)
	assert.Equal(t, "corr-123", id)
}

func TestBuildHeadersWithoutCorrelationID(t *testing.T) {
	headers := msgheaders.BuildHeaders(context.Background())
	_, ok := headers[correlationid.Header]
	assert.False(t, ok)
}
