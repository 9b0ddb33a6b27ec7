// Package user defines the user profile model cached on this device.
// The profile is written to the credential file verbatim, so its shape
// is a persistence contract: SchemaVersion guards against reading blobs
// written by an incompatible build.
package user

import "encoding/json"

// SchemaVersion is the current on-disk profile schema version.
// Bump it whenever a field changes meaning; old blobs then fail closed.
const SchemaVersion = 1

// Profile represents the server-supplied user identity.
// It is immutable within a session and replaced wholesale on re-login.
type Profile struct {
	// SchemaVersion records the schema the profile was serialized with.
	SchemaVersion int `json:"schema_version"`

	// Email is the user's login identifier.
	Email string `json:"email"`

	// Plan is the subscription plan name reported by the server.
	Plan string `json:"plan,omitempty"`
}

// Decode deserializes a stored profile blob. It returns false when the
// blob is malformed or was written with an unknown schema version; the
// caller must treat that as "no profile stored".
func Decode(data []byte) (*Profile, bool) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false
	}
	if p.SchemaVersion != SchemaVersion || p.Email == "" {
		return nil, false
	}

	return &p, true
}

// Encode serializes the profile for storage, stamping the current
// schema version.
func (p *Profile) Encode() ([]byte, error) {
	stamped := *p
	stamped.SchemaVersion = SchemaVersion

	return json.Marshal(stamped)
}
