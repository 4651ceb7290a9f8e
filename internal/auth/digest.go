package auth

import (
	"crypto/md5" //nolint:gosec // G501: MD5 required by OMA DS §4.5, protocol-mandated not a security choice.
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// decode returns the raw bytes of data after undoing enc.
func decode(data []byte, enc Encoding) ([]byte, bool) {
	if enc == EncodingRaw {
		return data, true
	}
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err != nil {
		return nil, false
	}
	return out[:n], true
}

// EncodeB64 base64-encodes raw credential bytes for the wire.
func EncodeB64(raw []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out
}

// BasicCredentials builds the raw "user:password" payload for outbound
// Basic auth (spec §4.5: "Basic: server decodes user:password").
func BasicCredentials(username, password string) []byte {
	return []byte(username + ":" + password)
}

// VerifyBasic decodes data per enc and compares it to the configured
// user:password in constant time.
func VerifyBasic(data []byte, enc Encoding, username, password string) bool {
	raw, ok := decode(data, enc)
	if !ok {
		return false
	}
	expected := BasicCredentials(username, password)
	return subtle.ConstantTimeCompare(raw, expected) == 1
}

// MD5Digest computes MD5(MD5(user:password):nonce), the OMA DS digest
// construction (spec §4.5).
func MD5Digest(username, password string, nonce []byte) []byte {
	inner := md5.Sum([]byte(username + ":" + password)) //nolint:gosec // G401: protocol-mandated digest.
	h := md5.New()                                       //nolint:gosec // G401: protocol-mandated digest.
	h.Write([]byte(hex.EncodeToString(inner[:])))
	h.Write([]byte(":"))
	h.Write(nonce)
	return h.Sum(nil)
}

// VerifyMD5 decodes data per enc and compares it to the expected digest.
func VerifyMD5(data []byte, enc Encoding, username, password string, nonce []byte) bool {
	raw, ok := decode(data, enc)
	if !ok {
		return false
	}
	expected := MD5Digest(username, password, nonce)

	// Accept either the raw digest bytes or its lowercase hex form -- OMA DS
	// implementations vary on which they place on the wire.
	if subtle.ConstantTimeCompare(raw, expected) == 1 {
		return true
	}
	return subtle.ConstantTimeCompare(raw, []byte(hex.EncodeToString(expected))) == 1
}
