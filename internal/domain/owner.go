package domain

import "fmt"

// OwnerAddressing selects how bookmark and preset rows are partitioned per
// user. A deployment picks one mode at configuration load; it never changes
// per request.
type OwnerAddressing int

const (
	// ByUsername keys owner rows by the raw username string.
	ByUsername OwnerAddressing = iota
	// ByID joins against the external users table to resolve a stable
	// numeric id for the owner.
	ByID
)

func (a OwnerAddressing) String() string {
	switch a {
	case ByUsername:
		return "username"
	case ByID:
		return "userid"
	default:
		return fmt.Sprintf("OwnerAddressing(%d)", int(a))
	}
}

// RecordKind distinguishes the two structurally identical per-user record
// tables.
type RecordKind int

const (
	Bookmarks RecordKind = iota
	VisibilityPresets
)

func (k RecordKind) String() string {
	switch k {
	case Bookmarks:
		return "bookmarks"
	case VisibilityPresets:
		return "visibility_presets"
	default:
		return fmt.Sprintf("RecordKind(%d)", int(k))
	}
}

// RecordSummary is one entry of an owner's record listing.
type RecordSummary struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	Date        string `json:"date"`
}
