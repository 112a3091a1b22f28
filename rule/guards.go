package rule

// HasRequiredFields reports whether the identity fields are filled in.
func HasRequiredFields(r *UniversalRule) bool {
	return r != nil && r.ID != "" && r.Name != "" && r.Host != ""
}

// IsEnabled treats a missing flag as enabled.
func IsEnabled(r *UniversalRule) bool {
	return r.Enabled == nil || *r.Enabled
}

// HasSearch reports whether search is enabled and has a URL.
func HasSearch(r *UniversalRule) bool {
	return r.Search != nil && r.Search.Enabled && r.Search.URL != ""
}

// HasDiscover reports whether discover is enabled and has a URL.
func HasDiscover(r *UniversalRule) bool {
	return r.Discover != nil && r.Discover.Enabled && r.Discover.URL != ""
}

// HasChapter reports whether a chapter list expression is present.
func HasChapter(r *UniversalRule) bool {
	return r.Chapter != nil && r.Chapter.List != ""
}

// HasContent reports whether a body expression is present.
func HasContent(r *UniversalRule) bool {
	return r.Content != nil && r.Content.Items != ""
}

// Capability names returned by Completeness.
const (
	MissingIdentity = "identity (id/name/host)"
	MissingEntry    = "search or discover"
	MissingChapter  = "chapter list"
	MissingContent  = "content"
)

// Completeness lists the capabilities a reader needs that r lacks. An empty
// result means the rule is usable end to end.
func Completeness(r *UniversalRule) []string {
	var missing []string
	if !HasRequiredFields(r) {
		missing = append(missing, MissingIdentity)
	}
	if r == nil {
		return append(missing, MissingEntry, MissingChapter, MissingContent)
	}
	if !HasSearch(r) && !HasDiscover(r) {
		missing = append(missing, MissingEntry)
	}
	if !HasChapter(r) {
		missing = append(missing, MissingChapter)
	}
	if !HasContent(r) {
		missing = append(missing, MissingContent)
	}
	return missing
}
