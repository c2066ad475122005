package question

import "github.com/trezcool/sistira/core"

var (
	errNoAlternatives    = "objective questions must have at least one alternative"
	errNoCorrectAlt      = "objective questions must have at least one correct alternative"
	errSubjectiveHasAlts = "subjective questions cannot have alternatives"
	errEmptyStatement    = "the statement must have a text or an image"
	errNotObjective      = "alternatives can only be added to objective questions"
)

// variant holds the rules specific to a question Type.
type variant interface {
	checkAlternatives(alts []NewAlternative) error
}

type (
	objective  struct{}
	subjective struct{}
)

func (t Type) variant() variant {
	if t == Subjective {
		return subjective{}
	}
	return objective{}
}

func (t Type) IsValid() bool {
	return t == Objective || t == Subjective
}

func (objective) checkAlternatives(alts []NewAlternative) error {
	if len(alts) == 0 {
		return core.NewFieldError("alternatives", errNoAlternatives)
	}
	for _, alt := range alts {
		if alt.Correct {
			return nil
		}
	}
	return core.NewFieldError("alternatives", errNoCorrectAlt)
}

func (subjective) checkAlternatives(alts []NewAlternative) error {
	if len(alts) > 0 {
		return core.NewFieldError("alternatives", errSubjectiveHasAlts)
	}
	return nil
}
