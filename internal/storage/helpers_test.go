package storage

import (
	"testing"

	"github.com/yndnr/chunkmeta-go/pkg/crypto/adaptive"
)

func testCipher(t *testing.T) adaptive.Cipher {
	t.Helper()
	key, err := adaptive.ParseKey("engine test passphrase")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	c, err := adaptive.New(key)
	if err != nil {
		t.Fatalf("adaptive.New: %v", err)
	}
	return c
}
