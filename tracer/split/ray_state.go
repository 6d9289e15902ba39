package split

import "fmt"

// Per-ray liveness status as written by the split kernel stages. The ray state
// buffer stores one byte per ray slot.
type RayState uint8

const (
	RayActive RayState = iota
	RayInactive
	RayUpdateBuffer
	RayHitBackground
	RayToRegenerate
	RayRegenerated
	RaySkipDirectLighting
	RayShadowRayCastAO
	RayShadowRayCastDL
)

// Implements Stringer.
func (rs RayState) String() string {
	switch rs {
	case RayActive:
		return "active"
	case RayInactive:
		return "inactive"
	case RayUpdateBuffer:
		return "update-buffer"
	case RayHitBackground:
		return "hit-background"
	case RayToRegenerate:
		return "to-regenerate"
	case RayRegenerated:
		return "regenerated"
	case RaySkipDirectLighting:
		return "skip-direct-lighting"
	case RayShadowRayCastAO:
		return "shadow-ray-cast-ao"
	case RayShadowRayCastDL:
		return "shadow-ray-cast-dl"
	}
	return fmt.Sprintf("ray-state(%d)", uint8(rs))
}

// Scan a ray state snapshot and report whether any slot still holds a ray
// that has not been retired.
func anyActive(snapshot []byte) bool {
	for _, st := range snapshot {
		if RayState(st) != RayInactive {
			return true
		}
	}
	return false
}
