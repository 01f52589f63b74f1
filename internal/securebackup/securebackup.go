// Package securebackup seals profile archives with a password. The file
// layout is a small header (magic, version, argon2id parameters, salt, nonce)
// followed by the AES-GCM ciphertext.
package securebackup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

// Extension is appended to the archive name of encrypted backups.
const Extension = ".enc"

var magic = []byte("GRBK01") // 6 bytes magic header

var (
	ErrBadPassword = errors.New("invalid password or corrupted data")
	ErrNotSealed   = errors.New("not an encrypted backup")
)

type kdfParams struct {
	timeCost uint32
	memoryKB uint32
	threads  uint8
	salt     []byte
	nonce    []byte
}

func defaultKDF() (kdfParams, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return kdfParams{}, err
	}
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return kdfParams{}, err
	}
	return kdfParams{
		timeCost: 2,
		memoryKB: 64 * 1024, // 64 MiB
		threads:  4,
		salt:     salt,
		nonce:    nonce,
	}, nil
}

func deriveKey(p kdfParams, password []byte) []byte {
	return argon2.IDKey(password, p.salt, p.timeCost, p.memoryKB, p.threads, 32)
}

func writeHeader(w io.Writer, p kdfParams) error {
	fields := []interface{}{
		uint8(1), p.timeCost, p.memoryKB, p.threads,
		uint16(len(p.salt)),
	}
	if _, err := w.Write(magic); err != nil {
		return err
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	if _, err := w.Write(p.salt); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(len(p.nonce))); err != nil {
		return err
	}
	_, err := w.Write(p.nonce)
	return err
}

func readHeader(r io.Reader) (kdfParams, error) {
	var hdr [6]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return kdfParams{}, ErrNotSealed
	}
	if !bytes.Equal(hdr[:], magic) {
		return kdfParams{}, ErrNotSealed
	}
	var version uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return kdfParams{}, err
	}
	if version != 1 {
		return kdfParams{}, fmt.Errorf("unsupported backup version: %d", version)
	}

	var p kdfParams
	for _, f := range []interface{}{&p.timeCost, &p.memoryKB, &p.threads} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return kdfParams{}, err
		}
	}
	var saltLen uint16
	if err := binary.Read(r, binary.LittleEndian, &saltLen); err != nil {
		return kdfParams{}, err
	}
	p.salt = make([]byte, saltLen)
	if _, err := io.ReadFull(r, p.salt); err != nil {
		return kdfParams{}, err
	}
	var nonceLen uint8
	if err := binary.Read(r, binary.LittleEndian, &nonceLen); err != nil {
		return kdfParams{}, err
	}
	p.nonce = make([]byte, nonceLen)
	if _, err := io.ReadFull(r, p.nonce); err != nil {
		return kdfParams{}, err
	}
	return p, nil
}

func newGCM(p kdfParams, password []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(p, password))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with password and writes it to outPath atomically.
func Seal(password, plaintext []byte, outPath string) error {
	if len(password) == 0 {
		return errors.New("password cannot be empty")
	}
	p, err := defaultKDF()
	if err != nil {
		return err
	}
	gcm, err := newGCM(p, password)
	if err != nil {
		return err
	}
	sealed := gcm.Seal(nil, p.nonce, plaintext, nil)

	tmp := outPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if err := writeHeader(f, p); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if _, err := f.Write(sealed); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, outPath)
}

// Open decrypts the file at inPath.
func Open(password []byte, inPath string) ([]byte, error) {
	f, err := os.Open(inPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(p, password)
	if err != nil {
		return nil, err
	}
	ct, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	pt, err := gcm.Open(nil, p.nonce, ct, nil)
	if err != nil {
		return nil, ErrBadPassword
	}
	return pt, nil
}

// IsSealed reports whether the file at path starts with the backup header.
func IsSealed(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var hdr [6]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return false
	}
	return bytes.Equal(hdr[:], magic)
}
