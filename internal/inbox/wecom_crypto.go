package inbox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// wecomSignature computes the SHA-1 signature WeCom/WeCom-Bot callbacks
// use: hex(sha1(sorted(token, timestamp, nonce, encrypted_body) joined))
// (spec §4.7 step 1).
func wecomSignature(token, timestamp, nonce, encrypted string) string {
	parts := []string{token, timestamp, nonce, encrypted}
	sort.Strings(parts)
	h := sha1.New()
	h.Write([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(h.Sum(nil))
}

// wecomDecrypt reverses WeCom's AES-256-CBC envelope: the encoding AES key
// is base64-decoded (with a trailing "=" appended to make it valid
// standard base64) and used directly as both key and IV (first 16 bytes).
// The decrypted plaintext has layout
// [16 random][4 length BE][payload][receive_id], PKCS#7 padded
// (spec §4.7 step 1). When expectedReceiveID is non-empty, the decrypted
// receive_id must match it or decryption is treated as a failure — mirroring
// `_wecom_decrypt_message`'s `receiveid_expected` check in
// original_source/repos/tgo-platform/app/api/v1/callbacks.py, which lets a
// caller distinguish "wrong tenant" from "genuinely malformed ciphertext."
func wecomDecrypt(encodingAESKey, encryptedBase64, expectedReceiveID string) (payload []byte, receiveID string, err error) {
	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	if err != nil {
		return nil, "", fmt.Errorf("decode encoding_aes_key: %w", err)
	}
	if len(key) != 32 {
		return nil, "", fmt.Errorf("encoding_aes_key must decode to 32 bytes, got %d", len(key))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedBase64)
	if err != nil {
		return nil, "", fmt.Errorf("decode encrypted body: %w", err)
	}
	if len(ciphertext) < aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, "", fmt.Errorf("ciphertext is not a multiple of the AES block size")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, "", fmt.Errorf("new aes cipher: %w", err)
	}
	iv := key[:aes.BlockSize]
	mode := cipher.NewCBCDecrypter(block, iv)
	plain := make([]byte, len(ciphertext))
	mode.CryptBlocks(plain, ciphertext)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, "", err
	}
	if len(plain) < 20 {
		return nil, "", fmt.Errorf("decrypted payload too short")
	}

	msgLen := binary.BigEndian.Uint32(plain[16:20])
	if int(20+msgLen) > len(plain) {
		return nil, "", fmt.Errorf("declared message length exceeds payload")
	}
	payload = plain[20 : 20+msgLen]
	receiveID = string(plain[20+msgLen:])
	if expectedReceiveID != "" && expectedReceiveID != receiveID {
		return nil, "", fmt.Errorf("receive_id mismatch: expected %q, got %q", expectedReceiveID, receiveID)
	}
	return payload, receiveID, nil
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, fmt.Errorf("invalid pkcs7 padding")
	}
	if !bytes.Equal(data[len(data)-pad:], bytes.Repeat([]byte{byte(pad)}, pad)) {
		return nil, fmt.Errorf("invalid pkcs7 padding bytes")
	}
	return data[:len(data)-pad], nil
}
