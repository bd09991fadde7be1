package auth_test

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/ghostkey/apitypes"
	"github.com/Alia5/ghostkey/internal/server/api/auth"
)

func TestReadClientNonce(t *testing.T) {
	validNonce := make([]byte, 32)
	for i := range validNonce {
		validNonce[i] = byte(i)
	}

	testCases := []struct {
		name          string
		input         []byte
		expectedNonce []byte
		expectedErr   string
	}{
		{name: "valid nonce", input: validNonce, expectedNonce: validNonce},
		{name: "short input", input: []byte{1, 2, 3}, expectedErr: "read client nonce: unexpected EOF"},
		{name: "empty input", input: []byte{}, expectedErr: "read client nonce: EOF"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			nonce, err := auth.ReadClientNonce(bytes.NewBuffer(tc.input))
			if tc.expectedErr != "" {
				assert.EqualError(t, err, tc.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedNonce, nonce)
		})
	}
}

func TestWriteServerHandshake(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	serverNonce, err := auth.WriteServerHandshake(buf)
	require.NoError(t, err)
	assert.Len(t, serverNonce, 32)
	out := buf.Bytes()
	assert.Len(t, out, 35)
	assert.Equal(t, "OK\x00", string(out[:3]))
	assert.Equal(t, serverNonce, out[3:])

	_, err = auth.WriteServerHandshake(nil)
	assert.EqualError(t, err, "write response: write on nil pointer")

	_, w := io.Pipe()
	_ = w.Close()
	_, err = auth.WriteServerHandshake(w)
	assert.EqualError(t, err, "write response: io: read/write on closed pipe")
}

func TestIsAuthHandshake(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    bool
		expectedErr string
	}{
		{name: "handshake", input: auth.HandshakeMagic, expected: true},
		{name: "plain request", input: "inject/status\x00", expected: false},
		{name: "short plain request", input: "x\x00", expected: false},
		{name: "prefix only", input: "GHK", expectedErr: "EOF"},
		{name: "empty", input: "", expectedErr: "EOF"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := auth.IsAuthHandshake(bufio.NewReader(bytes.NewBufferString(tc.input)))
			if tc.expectedErr != "" {
				assert.EqualError(t, err, tc.expectedErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, ok)
		})
	}
}

func TestServerHandshake(t *testing.T) {
	validKey, err := auth.DeriveKey("test123")
	require.NoError(t, err)
	wrongKey, err := auth.DeriveKey("wrongpass")
	require.NoError(t, err)

	clientNonce := make([]byte, 32)
	for i := range clientNonce {
		clientNonce[i] = byte(i)
	}
	mac := hmac.New(sha256.New, validKey)
	_, _ = mac.Write([]byte("ghostkey-Auth-v1"))
	_, _ = mac.Write(clientNonce)
	validHandshake := append([]byte(auth.HandshakeMagic), clientNonce...)
	validHandshake = append(validHandshake, mac.Sum(nil)...)

	testCases := []struct {
		name        string
		input       []byte
		writer      io.Writer
		key         []byte
		expectedErr string
	}{
		{name: "success", input: validHandshake, writer: bytes.NewBuffer(nil), key: validKey},
		{name: "short nonce", input: append([]byte(auth.HandshakeMagic), []byte("short")...), writer: bytes.NewBuffer(nil), key: validKey, expectedErr: "read client nonce: unexpected EOF"},
		{name: "missing mac", input: append([]byte(auth.HandshakeMagic), clientNonce...), writer: bytes.NewBuffer(nil), key: validKey, expectedErr: "read client auth: EOF"},
		{name: "nil writer", input: validHandshake, writer: nil, key: validKey, expectedErr: "write response: write on nil pointer"},
		{name: "truncated magic", input: []byte("GH"), writer: bytes.NewBuffer(nil), key: validKey, expectedErr: "discard handshake magic: EOF"},
		{name: "missing key", input: validHandshake, writer: bytes.NewBuffer(nil), expectedErr: "handshake: missing key"},
		{name: "wrong password", input: validHandshake, writer: bytes.NewBuffer(nil), key: wrongKey, expectedErr: auth.ErrInvalidPassword.Error()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cn, sn, err := auth.ServerHandshake(bufio.NewReader(bytes.NewBuffer(tc.input)), tc.writer, tc.key)
			if tc.expectedErr != "" {
				assert.EqualError(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, clientNonce, cn)
			assert.Len(t, sn, 32)
		})
	}
}

func TestClientServerHandshake(t *testing.T) {
	tests := []struct {
		name           string
		clientPassword string
		serverPassword string
		wantErr        error
	}{
		{name: "matching passwords", clientPassword: "hunter2", serverPassword: "hunter2"},
		{name: "wrong password", clientPassword: "hunter3", serverPassword: "hunter2", wantErr: auth.ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ck, err := auth.DeriveKey(tt.clientPassword)
			require.NoError(t, err)
			sk, err := auth.DeriveKey(tt.serverPassword)
			require.NoError(t, err)

			cc, sc := net.Pipe()
			defer cc.Close()

			type res struct {
				cn, sn []byte
				err    error
			}
			srv := make(chan res, 1)
			go func() {
				defer sc.Close()
				cn, sn, err := auth.ServerHandshake(bufio.NewReader(sc), sc, sk)
				srv <- res{cn, sn, err}
			}()

			cn, sn, err := auth.ClientHandshake(bufio.NewReader(cc), cc, ck)
			s := <-srv
			if tt.wantErr != nil {
				assert.ErrorIs(t, s.err, tt.wantErr)
				var apiErr *apitypes.ApiError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, 401, apiErr.Status)
				return
			}
			require.NoError(t, err)
			require.NoError(t, s.err)
			assert.Equal(t, s.cn, cn)
			assert.Equal(t, s.sn, sn)
			assert.Equal(t, auth.DeriveSessionKey(sk, s.sn, s.cn), auth.DeriveSessionKey(ck, sn, cn))
		})
	}
}

func TestClientHandshakeProblemReply(t *testing.T) {
	key, err := auth.DeriveKey("x")
	require.NoError(t, err)
	reply := `{"status":401,"title":"Unauthorized","detail":"authentication is not enabled"}` + "\n"
	_, _, err = auth.ClientHandshake(bufio.NewReader(bytes.NewBufferString(reply)), io.Discard, key)
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "authentication is not enabled", apiErr.Detail)

	_, _, err = auth.ClientHandshake(bufio.NewReader(bytes.NewBufferString("garbage\n")), io.Discard, key)
	assert.EqualError(t, err, fmt.Sprintf("invalid handshake response from server: %s", "garbage"))
}
