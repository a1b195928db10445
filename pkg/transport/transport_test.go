package transport_test

import (
	"context"
	"errors"
	"testing"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/transport"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	cases := []struct {
		desc      string
		ctx       context.Context
		err       error
		kind      error
		retryable bool
	}{
		{
			desc: "deadline",
			ctx:  context.Background(),
			err:  context.DeadlineExceeded,
			kind: transport.ErrTimeout,
		},
		{
			desc: "expired context",
			ctx:  expired,
			err:  errors.New("read: connection reset"),
			kind: transport.ErrTimeout,
		},
		{
			desc: "protocol mismatch",
			ctx:  context.Background(),
			err:  fl.ErrProtocolMismatch,
			kind: transport.ErrMalformed,
		},
		{
			desc:      "broker failure",
			ctx:       context.Background(),
			err:       errors.New("connection refused"),
			kind:      transport.ErrTransport,
			retryable: true,
		},
		{
			desc: "already classified",
			ctx:  expired,
			err:  transport.ErrMalformed,
			kind: transport.ErrMalformed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := transport.Classify(tc.ctx, tc.err)
			assert.ErrorIs(t, err, tc.kind)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.retryable, transport.Retryable(err))
		})
	}

	assert.NoError(t, transport.Classify(context.Background(), nil))
}
