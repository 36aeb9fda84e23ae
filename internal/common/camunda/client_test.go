// internal/common/camunda/client_test.go
package camunda

import (
	"fmt"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"book-availability/internal/common/errors"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{fmt.Errorf("dial tcp: connection refused"), true},
		{fmt.Errorf("rpc error: code = Unavailable"), true},
		{fmt.Errorf("context deadline exceeded"), true},
		{fmt.Errorf("permission denied"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTransient(tt.err), "%v", tt.err)
	}
}

func TestDecodeVariables(t *testing.T) {
	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Variables: `{"title":"이방인"}`}}

	var in struct {
		Title string `json:"title"`
	}
	require.NoError(t, DecodeVariables(job, &in))
	assert.Equal(t, "이방인", in.Title)

	bad := entities.Job{ActivatedJob: &pb.ActivatedJob{Variables: `{`}}
	err := DecodeVariables(bad, &in)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidQuery, errors.AsStandardError(err).Code)
}
