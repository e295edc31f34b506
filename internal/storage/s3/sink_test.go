package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeClient) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestSinkPutBuildsRequest(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	sink, err := New(client, "application/vnd.apache.parquet")
	require.NoError(t, err)

	err = sink.Put(context.Background(), "raw-auctions", "carsnbids/2025-11-14.parquet", []byte("PAR1"))
	require.NoError(t, err)
	require.Equal(t, "raw-auctions", aws.ToString(client.input.Bucket))
	require.Equal(t, "carsnbids/2025-11-14.parquet", aws.ToString(client.input.Key))
	require.Equal(t, "application/vnd.apache.parquet", aws.ToString(client.input.ContentType))
	require.Equal(t, int64(4), aws.ToInt64(client.input.ContentLength))
	require.Equal(t, []byte("PAR1"), client.body)
}

func TestSinkPutWrapsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("AccessDenied")
	sink, err := New(&fakeClient{err: boom}, "")
	require.NoError(t, err)

	err = sink.Put(context.Background(), "raw-auctions", "k", []byte("x"))
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "s3://raw-auctions/k")
}

func TestSinkValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "")
	require.Error(t, err)

	sink, err := New(&fakeClient{}, "")
	require.NoError(t, err)
	require.Error(t, sink.Put(context.Background(), "", "k", nil))
	require.Error(t, sink.Put(context.Background(), "b", "", nil))

	_, err = NewFromConfig(context.Background(), Config{}, "")
	require.Error(t, err)
}

func TestNewFromConfigAgainstEndpoint(t *testing.T) {
	// A CA bundle from the environment cannot be applied to the test server's client.
	t.Setenv("AWS_CA_BUNDLE", "")

	var (
		mu     sync.Mutex
		method string
		path   string
		body   []byte
	)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, data
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewFromConfig(context.Background(), Config{
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		HTTPClient:      srv.Client(),
	}, "application/vnd.apache.parquet")
	require.NoError(t, err)

	require.NoError(t, sink.Put(context.Background(), "raw-auctions", "carsnbids/2025-11-14.parquet", []byte("PAR1")))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/raw-auctions/carsnbids/2025-11-14.parquet", path)
	require.Contains(t, string(body), "PAR1")
}
