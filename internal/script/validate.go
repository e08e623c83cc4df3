package script

// ValidateSequenceScript checks document structure: targets present,
// every target carrying a name, every task carrying a type, every
// dependency naming a declared target. Document's Go types already
// guarantee the shape at the JSON level; this additionally rejects the
// empty-name/empty-type cases a zero-value struct would otherwise let
// through silently.
func ValidateSequenceScript(doc Document) bool {
	return validateSequenceScript(doc) == nil
}

// ValidateSequenceScriptErr is ValidateSequenceScript's error-returning
// form, used by CreateSequenceFromScript to surface *why* a document was
// rejected.
func ValidateSequenceScriptErr(doc Document) error {
	return validateSequenceScript(doc)
}

func validateSequenceScript(doc Document) error {
	if doc.Sequence.Targets == nil {
		return errMalformed("sequence.targets is required")
	}
	seen := make(map[string]bool, len(doc.Sequence.Targets))
	for i, t := range doc.Sequence.Targets {
		if t.Name == "" {
			return errMalformed("targets[%d].name is required", i)
		}
		if seen[t.Name] {
			return errMalformed("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
		for j, tk := range t.Tasks {
			if tk.Type == "" {
				return errMalformed("targets[%d].tasks[%d].type is required", i, j)
			}
		}
	}
	for _, t := range doc.Sequence.Targets {
		for _, dep := range t.Dependencies {
			if !seen[dep] {
				return errMalformed("target %q depends on unknown target %q", t.Name, dep)
			}
		}
	}
	return nil
}
