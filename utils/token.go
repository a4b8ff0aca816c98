package utils

import (
    "crypto/rand"
    "encoding/base64"
)

const shortIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSessionToken returns an opaque 256-bit token for session lookup.
func GenerateSessionToken() (string, error) {
    tokenBytes := make([]byte, 32)
    if _, err := rand.Read(tokenBytes); err != nil {
        return "", err
    }
    return base64.URLEncoding.EncodeToString(tokenBytes), nil
}

// GenerateShortID returns a short random identifier, used for papers and
// turns where a full UUID is overkill.
func GenerateShortID(length int) (string, error) {
    buf := make([]byte, length)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    for i, b := range buf {
        buf[i] = shortIDAlphabet[int(b)%len(shortIDAlphabet)]
    }
    return string(buf), nil
}
