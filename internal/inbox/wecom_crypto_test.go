package inbox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWecomSignatureIsOrderIndependent(t *testing.T) {
	sig1 := wecomSignature("tok", "1700000000", "abc123", "encrypted-body")
	sig2 := wecomSignature("abc123", "encrypted-body", "tok", "1700000000")
	assert.Equal(t, sig1, sig2, "signature input is sorted before hashing")
}

func TestWecomSignatureChangesWithInput(t *testing.T) {
	sig1 := wecomSignature("tok", "1700000000", "abc123", "encrypted-body")
	sig2 := wecomSignature("tok", "1700000001", "abc123", "encrypted-body")
	assert.NotEqual(t, sig1, sig2)
}

// wecomEncryptForTest builds the same envelope wecomDecrypt expects,
// letting the round trip test exercise the real decrypt path.
func wecomEncryptForTest(t *testing.T, encodingAESKey, payload, receiveID string) string {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	require.NoError(t, err)

	random16 := bytes.Repeat([]byte{7}, 16)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(payload)))

	plain := append(append(append(random16, lenBuf...), payload...), receiveID...)
	pad := aes.BlockSize - (len(plain) % aes.BlockSize)
	if pad == 0 {
		pad = aes.BlockSize
	}
	plain = append(plain, bytes.Repeat([]byte{byte(pad)}, pad)...)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	iv := key[:aes.BlockSize]
	ciphertext := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plain)
	return base64.StdEncoding.EncodeToString(ciphertext)
}

func TestWecomDecryptRoundTrip(t *testing.T) {
	key := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQ" // 43 chars -> 32 bytes with '=' appended
	encrypted := wecomEncryptForTest(t, key, "<xml>hello</xml>", "corp123")

	payload, receiveID, err := wecomDecrypt(key, encrypted, "")
	require.NoError(t, err)
	assert.Equal(t, "<xml>hello</xml>", string(payload))
	assert.Equal(t, "corp123", receiveID)
}

func TestWecomDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQ"
	encrypted := wecomEncryptForTest(t, key, "<xml>hello</xml>", "corp123")

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, _, err = wecomDecrypt(key, tampered, "")
	assert.Error(t, err)
}

func TestWecomDecryptValidatesExpectedReceiveID(t *testing.T) {
	key := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQ"
	encrypted := wecomEncryptForTest(t, key, "<xml>hello</xml>", "corp123")

	_, _, err := wecomDecrypt(key, encrypted, "corp123")
	assert.NoError(t, err, "matching expected receive_id passes validation")

	_, _, err = wecomDecrypt(key, encrypted, "some-other-corp")
	assert.Error(t, err, "mismatched expected receive_id must fail")

	payload, receiveID, err := wecomDecrypt(key, encrypted, "")
	require.NoError(t, err, "empty expected receive_id skips validation")
	assert.Equal(t, "<xml>hello</xml>", string(payload))
	assert.Equal(t, "corp123", receiveID)
}

// TestWecomBotRetryFallsBackToUnvalidatedDecrypt exercises the two-attempt
// order WeComBotHandler.Normalize relies on: a message encrypted with an
// empty receive_id fails validation against a configured corp_id, so the
// handler's fallback call (expected="") must be the one that succeeds.
func TestWecomBotRetryFallsBackToUnvalidatedDecrypt(t *testing.T) {
	key := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQ"
	encrypted := wecomEncryptForTest(t, key, `{"msgtype":"text"}`, "")

	_, _, err := wecomDecrypt(key, encrypted, "corp123")
	require.Error(t, err, "corp_id-validated attempt must fail for an empty receive_id message")

	payload, receiveID, err := wecomDecrypt(key, encrypted, "")
	require.NoError(t, err, "unvalidated fallback attempt must succeed")
	assert.Equal(t, `{"msgtype":"text"}`, string(payload))
	assert.Equal(t, "", receiveID)
}
