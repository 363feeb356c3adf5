package syntax

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	aturiRegex  = regexp.MustCompile(`^at:\/\/(?P<authority>[a-zA-Z0-9._:%-]+)(\/(?P<collection>[a-zA-Z0-9-.]+)(\/(?P<rkey>[a-zA-Z0-9_~.:-]{1,512}))?)?$`)
	handleRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
)

// AT-URI without query or fragment, as used to reference records.
//
// Syntax specification: https://atproto.com/specs/at-uri-scheme
type ATURI string

func ParseATURI(raw string) (ATURI, error) {
	if len(raw) > 8192 {
		return "", errors.New("ATURI is too long (8192 chars max)")
	}
	parts := aturiRegex.FindStringSubmatch(raw)
	if parts == nil || parts[0] == "" {
		return "", errors.New("AT-URI syntax didn't validate via regex")
	}
	auth := parts[1]
	if _, err := ParseDID(auth); err != nil && !handleRegex.MatchString(auth) {
		return "", fmt.Errorf("AT-URI authority section neither a DID nor Handle: %s", auth)
	}
	if parts[3] != "" {
		if _, err := ParseNSID(parts[3]); err != nil {
			return "", fmt.Errorf("AT-URI first path segment not an NSID: %s", parts[3])
		}
	}
	if parts[5] != "" {
		if _, err := ParseRecordKey(parts[5]); err != nil {
			return "", fmt.Errorf("AT-URI second path segment not a RecordKey: %s", parts[5])
		}
	}
	return ATURI(raw), nil
}

// Builds the AT-URI of a record from the repo DID and its repo path.
func RecordURI(did DID, collection NSID, rkey RecordKey) ATURI {
	return ATURI(fmt.Sprintf("at://%s/%s/%s", did, collection, rkey))
}

// Authority segment, either a DID or a handle.
func (n ATURI) Authority() string {
	parts := strings.SplitN(string(n), "/", 4)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

func (n ATURI) Collection() (NSID, error) {
	parts := strings.SplitN(string(n), "/", 5)
	if len(parts) < 4 {
		return "", errors.New("AT-URI has no collection segment")
	}
	return ParseNSID(parts[3])
}

func (n ATURI) RecordKey() (RecordKey, error) {
	parts := strings.SplitN(string(n), "/", 6)
	if len(parts) < 5 {
		return "", errors.New("AT-URI has no record key segment")
	}
	return ParseRecordKey(parts[4])
}

func (n ATURI) String() string {
	return string(n)
}
