// Package cache memoizes enhancement results per normalized input.
//
// Entries never expire and are never evicted; the cache lives as long as the
// process. That is acceptable for a short-lived session server but a
// long-running deployment will grow without bound.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"reelcraft/internal/metrics"
)

// ResponseCache is the contract the enhancement clients depend on.
type ResponseCache interface {
	Get(key string) (string, bool)
	Put(key, value string)
}

// Memory is a process-scoped ResponseCache backed by go-cache. It is safe for
// concurrent use.
type Memory struct {
	name    string
	items   *gocache.Cache
	metrics *metrics.Collector
}

// NewMemory returns an empty cache. name labels the hit/miss metrics.
func NewMemory(name string, collector *metrics.Collector) *Memory {
	return &Memory{
		name:    name,
		items:   gocache.New(gocache.NoExpiration, 0),
		metrics: collector,
	}
}

func (m *Memory) Get(key string) (string, bool) {
	v, ok := m.items.Get(key)
	if ok {
		if s, isString := v.(string); isString {
			m.metrics.CacheLookup(m.name, true)
			return s, true
		}
	}
	m.metrics.CacheLookup(m.name, false)
	return "", false
}

func (m *Memory) Put(key, value string) {
	m.items.Set(key, value, gocache.NoExpiration)
}

// Len reports the number of stored entries.
func (m *Memory) Len() int {
	return m.items.ItemCount()
}

var _ ResponseCache = (*Memory)(nil)

// TextKey normalizes a prompt for the text cache.
func TextKey(prompt string) string {
	return strings.ToLower(strings.TrimSpace(prompt))
}

// Fingerprint reduces an image payload to a short cache-key component.
type Fingerprint func(image string) string

const prefixFingerprintLength = 100

// PrefixFingerprint keeps the first 100 characters of the payload. Distinct
// images that share a long common prefix (identical headers, a data URL
// preamble) collide and will be served each other's analysis.
func PrefixFingerprint(image string) string {
	if len(image) <= prefixFingerprintLength {
		return image
	}
	return image[:prefixFingerprintLength]
}

// SHA256Fingerprint hashes the whole payload. It removes prefix collisions at
// the cost of hashing every upload.
func SHA256Fingerprint(image string) string {
	sum := sha256.Sum256([]byte(image))
	return hex.EncodeToString(sum[:])
}

// FingerprintByName maps the VISION_CACHE_FINGERPRINT setting to a strategy.
// Unknown names get the prefix strategy.
func FingerprintByName(name string) Fingerprint {
	if strings.EqualFold(strings.TrimSpace(name), "sha256") {
		return SHA256Fingerprint
	}
	return PrefixFingerprint
}

// VisionKey combines the normalized prompt with an image fingerprint.
func VisionKey(prompt, image string, fp Fingerprint) string {
	if fp == nil {
		fp = PrefixFingerprint
	}
	return TextKey(prompt) + "|" + fp(image)
}
