package stage

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// ObjectKey derives a run-unique staging key. The run id guarantees
// uniqueness across concurrent runs; the content digest makes identical
// uploads recognizable in logs and the ledger.
func ObjectKey(runID string, data []byte, suffix string) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("staging/%s-%s-%s", runID, hex.EncodeToString(sum[:8]), suffix)
}

// RunKey derives a staging key for an object that does not exist yet, such
// as the edit job's output.
func RunKey(runID, suffix string) string {
	return fmt.Sprintf("staging/%s-%s", runID, suffix)
}
