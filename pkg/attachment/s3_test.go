package attachment

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func notFound() error {
	return awserr.NewRequestFailure(awserr.New("NotFound", "Not Found", nil), http.StatusNotFound, "req-1")
}

func keyIs(key string) any {
	return mock.MatchedBy(func(in any) bool {
		switch v := in.(type) {
		case *s3.HeadObjectInput:
			return aws.StringValue(v.Key) == key
		case *s3.GetObjectInput:
			return aws.StringValue(v.Key) == key
		case *s3.PutObjectInput:
			return aws.StringValue(v.Key) == key
		}
		return false
	})
}

func TestS3StoreImportUploadsMissingObject(t *testing.T) {
	ctx := context.Background()
	doc := []byte("prospectus bytes")
	key := "attachments/" + ledger.HashOf(doc).String()

	client := new(mockS3)
	client.On("HeadObjectWithContext", mock.Anything, keyIs(key)).Return(nil, notFound()).Once()
	client.On("PutObjectWithContext", mock.Anything, keyIs(key)).Return(&s3.PutObjectOutput{}, nil).Once()

	store := newS3Store(client, "docs", "/attachments/", zap.NewNop())
	id, err := store.Import(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, ledger.HashOf(doc), id)
	client.AssertExpectations(t)
}

func TestS3StoreImportSkipsExistingObject(t *testing.T) {
	ctx := context.Background()
	doc := []byte("prospectus bytes")

	client := new(mockS3)
	client.On("HeadObjectWithContext", mock.Anything, mock.Anything).Return(&s3.HeadObjectOutput{}, nil).Once()

	store := newS3Store(client, "docs", "attachments", zap.NewNop())
	_, err := store.Import(ctx, doc)
	require.NoError(t, err)
	client.AssertNotCalled(t, "PutObjectWithContext", mock.Anything, mock.Anything)
}

func TestS3StoreFetch(t *testing.T) {
	ctx := context.Background()
	doc := []byte("prospectus bytes")
	id := ledger.HashOf(doc)
	missing := ledger.HashOf([]byte("missing"))

	client := new(mockS3)
	client.On("GetObjectWithContext", mock.Anything, keyIs(id.String())).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(doc))}, nil).Once()
	client.On("GetObjectWithContext", mock.Anything, keyIs(missing.String())).
		Return(nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)).Once()

	store := newS3Store(client, "docs", "", zap.NewNop())

	got, err := store.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = store.Fetch(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3StoreFetchDetectsCorruptObject(t *testing.T) {
	ctx := context.Background()
	id := ledger.HashOf([]byte("original"))

	client := new(mockS3)
	client.On("GetObjectWithContext", mock.Anything, mock.Anything).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("tampered")))}, nil).Once()

	store := newS3Store(client, "docs", "", zap.NewNop())
	_, err := store.Fetch(ctx, id)
	assert.ErrorIs(t, err, ErrCorrupt)
}
