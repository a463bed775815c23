package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainInvocation separates invocation hashes from any other use of SHA-256.
const DomainInvocation = "drill/invocation/v1"

func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InvocationID computes the content-addressed id of one backend call within
// a run. The same run, sequence number and command always hash the same.
func InvocationID(runID string, seq int64, command string) (string, error) {
	obj := Object{
		"run_id":  String(runID),
		"seq":     Int(seq),
		"command": String(command),
	}
	canonical, err := Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("InvocationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInvocation, canonical), nil
}
