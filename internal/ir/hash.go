package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRuleTable = "bibform/rule-table/v1"
	DomainRecord    = "bibform/record/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TableFingerprint hashes a canonical summary of a rule table. Two tables
// built from the same ordered configuration sources share a fingerprint, so
// stored records can tell which configuration produced them.
func TableFingerprint(summary IRObject) (string, error) {
	canonical, err := MarshalCanonical(summary)
	if err != nil {
		return "", fmt.Errorf("TableFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRuleTable, canonical), nil
}

// RecordDigest hashes the canonical dump of a translated record.
func RecordDigest(data IRObject) (string, error) {
	canonical, err := MarshalCanonical(data)
	if err != nil {
		return "", fmt.Errorf("RecordDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}
