package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SimpleKeyfile reads and writes a private key as an unencrypted hex dump.
type SimpleKeyfile struct {
	l       sync.Mutex
	keyfile string
}

// NewSimpleKeyfile instantiates a new SimpleKeyfile with an underlying file.
func NewSimpleKeyfile(keyfile string) *SimpleKeyfile {
	return &SimpleKeyfile{
		keyfile: keyfile,
	}
}

// CheckFileInfo verifies that the file exists and has user permissions only.
func (k *SimpleKeyfile) CheckFileInfo() error {
	info, err := os.Stat(k.keyfile)
	if err != nil {
		return err
	}

	perm := info.Mode().Perm()

	// build 000111111 mask
	var nonUserMask os.FileMode = (1 << 6) - 1

	if perm&nonUserMask != 0 {
		return fmt.Errorf("priv_key file permissions should exclude 'groups' and 'others'. Got %o", perm)
	}

	return nil
}

// ReadRaw returns the decoded bytes stored in the keyfile.
func (k *SimpleKeyfile) ReadRaw() ([]byte, error) {
	k.l.Lock()
	defer k.l.Unlock()

	if err := k.CheckFileInfo(); err != nil {
		return nil, err
	}

	buf, err := os.ReadFile(k.keyfile)
	if err != nil {
		return nil, err
	}

	return hex.DecodeString(strings.TrimSpace(string(buf)))
}

// WriteRaw writes a hex dump of raw to the keyfile.
func (k *SimpleKeyfile) WriteRaw(raw []byte) error {
	k.l.Lock()
	defer k.l.Unlock()

	if err := os.MkdirAll(filepath.Dir(k.keyfile), 0700); err != nil {
		return err
	}

	return os.WriteFile(k.keyfile, []byte(hex.EncodeToString(raw)), 0600)
}

// ReadKey reads an ECDSA key written by WriteKey.
func (k *SimpleKeyfile) ReadKey() (*ecdsa.PrivateKey, error) {
	raw, err := k.ReadRaw()
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(raw)
}

// WriteKey writes a raw hex dump of the key's D value to the keyfile.
func (k *SimpleKeyfile) WriteKey(key *ecdsa.PrivateKey) error {
	return k.WriteRaw(DumpPrivateKey(key))
}
