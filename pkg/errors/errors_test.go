// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProxyError(t *testing.T) {
	assert.NoError(t, New("read", "upstream", "s1", "1.2.3.4:5", nil))

	err := New("read", "upstream", "s1", "1.2.3.4:5", io.ErrUnexpectedEOF)
	assert.Equal(t, "upstream read [s1] 1.2.3.4:5: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var pe *ProxyError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "s1", pe.SessionID)

	err = New("dial", "", "", "1.2.3.4:5", ErrBackendUnavailable)
	assert.Equal(t, "dial 1.2.3.4:5: backend unavailable", err.Error())
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ctx"))
	err := Wrap(ErrTimeout, "dial")
	assert.Equal(t, "dial: timeout", err.Error())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestIsClosed(t *testing.T) {
	tests := []struct {
		err    error
		closed bool
	}{
		{err: io.EOF, closed: true},
		{err: fmt.Errorf("read: %w", net.ErrClosed), closed: true},
		{err: New("write", "downstream", "s", "a", io.ErrClosedPipe), closed: true},
		{err: ErrConnectionClosed, closed: true},
		{err: ErrRateLimited, closed: false},
		{err: errors.New("boom"), closed: false},
		{err: nil, closed: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.closed, IsClosed(tt.err), "%v", tt.err)
	}
}
