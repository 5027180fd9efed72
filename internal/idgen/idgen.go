// Package idgen generates the deterministic identifiers spec.md §3 requires:
// uuid5(DNS, "...") for singleton cards and canonical_key sha256 hashes for
// claims.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// SingletonCardID returns the deterministic id of a per-user singleton card:
// uuid5(DNS, "{canonical_user_id}|{kind}|__singleton__").
func SingletonCardID(canonicalUserID, kind string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(fmt.Sprintf("%s|%s|__singleton__", canonicalUserID, kind))).String()
}

// TopicCardID returns the deterministic id of a per-user topic card:
// uuid5(DNS, "{canonical_user_id}|{kind}|{topic_key}").
func TopicCardID(canonicalUserID, kind, topicKey string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(fmt.Sprintf("%s|%s|%s", canonicalUserID, kind, topicKey))).String()
}

// New returns a random UUIDv4 string, used for row ids that are not
// deterministically derived (jobs, sources, claims, threads, ...).
func New() string {
	return uuid.NewString()
}

// ClaimCanonicalKey computes canonical_key = sha256("s={subject}|p={pred}|ol={object}|q={quals}").
func ClaimCanonicalKey(subjectEntityID, predicate, objectLiteral, qualifiers string) string {
	s := fmt.Sprintf("s=%s|p=%s|ol=%s|q=%s", subjectEntityID, predicate, objectLiteral, qualifiers)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ContentSHA256 hashes a source's content for the content_sha256 column.
func ContentSHA256(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
