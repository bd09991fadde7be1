package auth

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// Role selects the nonce space of one side of a connection. Both sides share
// the session key, so each sends under its own prefix.
type Role uint32

const (
	RoleClient Role = 1
	RoleServer Role = 2
)

const maxPacketSize = 2 * 1024 * 1024

// ErrReplayedFrame is returned when a frame arrives out of sequence or with
// the sender's own role.
var ErrReplayedFrame = errors.New("auth: unexpected frame nonce")

// Conn frames every Write as length(4) | nonce(12) | ciphertext. The nonce is
// role(4) | counter(8), big endian.
type Conn struct {
	net.Conn
	aead cipher.AEAD
	role Role

	wmu     sync.Mutex
	sendCtr uint64

	rmu     sync.Mutex
	recvCtr uint64
	recvBuf bytes.Buffer
}

// WrapConn wraps conn for the given side of the connection.
func WrapConn(conn net.Conn, sessionKey []byte, role Role) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn, aead: aead, role: role}, nil
}

func (s *Conn) peer() Role {
	if s.role == RoleClient {
		return RoleServer
	}
	return RoleClient
}

func (s *Conn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	frame := make([]byte, 4+chacha20poly1305.NonceSize, 4+chacha20poly1305.NonceSize+len(p)+s.aead.Overhead())
	nonce := frame[4:]
	binary.BigEndian.PutUint32(nonce[:4], uint32(s.role))
	binary.BigEndian.PutUint64(nonce[4:], s.sendCtr)
	s.sendCtr++

	frame = s.aead.Seal(frame, nonce, p, nil)
	binary.BigEndian.PutUint32(frame[:4], uint32(len(frame)-4))
	if _, err := s.Conn.Write(frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *Conn) Read(p []byte) (int, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	if s.recvBuf.Len() == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(s.Conn, hdr[:]); err != nil {
			return 0, err
		}
		length := binary.BigEndian.Uint32(hdr[:])
		if length > maxPacketSize || length < chacha20poly1305.NonceSize {
			return 0, io.ErrUnexpectedEOF
		}
		pkt := make([]byte, length)
		if _, err := io.ReadFull(s.Conn, pkt); err != nil {
			return 0, err
		}
		nonce := pkt[:chacha20poly1305.NonceSize]
		if Role(binary.BigEndian.Uint32(nonce[:4])) != s.peer() || binary.BigEndian.Uint64(nonce[4:]) != s.recvCtr {
			return 0, ErrReplayedFrame
		}
		pt, err := s.aead.Open(nil, nonce, pkt[chacha20poly1305.NonceSize:], nil)
		if err != nil {
			return 0, err
		}
		s.recvCtr++
		s.recvBuf.Write(pt)
	}
	return s.recvBuf.Read(p)
}
