package types

import "time"

// DeviceKind classifies a device for enumeration purposes.
type DeviceKind string

const (
	VideoInput  DeviceKind = "videoinput"
	AudioInput  DeviceKind = "audioinput"
	AudioOutput DeviceKind = "audiooutput"
	OtherDevice DeviceKind = "other"
)

// DeviceDescriptor is an immutable snapshot of one discovered device.
// The whole list is replaced on every enumeration; descriptors are never
// mutated in place.
type DeviceDescriptor struct {
	ID      string     `json:"id"`
	Kind    DeviceKind `json:"kind"`
	Label   string     `json:"label"`
	GroupID string     `json:"groupId"`
}

// PermissionStatus is the grant state reported by the platform for one
// permission category.
type PermissionStatus string

const (
	PermissionUnknown PermissionStatus = "unknown"
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionPrompt  PermissionStatus = "prompt"
)

// PermissionState is the result of a permission check or request.
type PermissionState struct {
	Category  string           `json:"category"`
	Status    PermissionStatus `json:"status"`
	CheckedAt time.Time        `json:"checkedAt"`
}

// Granted reports whether the state allows opening a session.
func (p PermissionState) Granted() bool {
	return p.Status == PermissionGranted
}
