package dispatcher

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// unitFraction maps a deterministic hash of (run_id, persona_uuid, trait_id)
// onto [0, 1), the same md5-truncate-to-uint64 shape the teacher uses for
// cache keys in internal/comparator/cached_comparator.go, reused here for
// a uniform pseudo-random split rather than key derivation.
func unitFraction(runID int64, personaUUID uuid.UUID, traitID string) float64 {
	sum := md5.Sum([]byte(fmt.Sprintf("%d:%s:%s", runID, personaUUID.String(), traitID)))
	n := binary.BigEndian.Uint64(sum[:8])
	return float64(n) / float64(^uint64(0))
}
