package iothub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// DefaultTokenTTL is how long a generated SAS token stays valid.
const DefaultTokenTTL = time.Hour

// SASToken signs resourceURI with the base64 key, valid until expiry.
func SASToken(resourceURI, key string, expiry time.Time) (string, error) {
	rawKey, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("failed to decode shared access key: %w", err)
	}

	sr := url.QueryEscape(resourceURI)
	se := strconv.FormatInt(expiry.Unix(), 10)

	mac := hmac.New(sha256.New, rawKey)
	mac.Write([]byte(sr + "\n" + se))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%s", sr, url.QueryEscape(sig), se), nil
}

// Credentials returns the MQTT username and a fresh SAS token password for the device.
func (cs ConnectionString) Credentials(now time.Time, ttl time.Duration) (string, string, error) {
	token, err := SASToken(cs.ResourceURI(), cs.SharedAccessKey, now.Add(ttl))
	if err != nil {
		return "", "", err
	}

	return cs.Username(), token, nil
}
