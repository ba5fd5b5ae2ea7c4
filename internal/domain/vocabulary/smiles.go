package vocabulary

import "github.com/turtacn/DrugEx/internal/domain/molecule"

// IsValid reports whether smiles passes Validate.
func IsValid(smiles string) bool {
	return Validate(smiles) == nil
}

// Validate checks smiles for syntax errors and over-valent organic atoms.  The
// returned error carries ErrCodeSMILESInvalid.
func Validate(smiles string) error {
	_, err := molecule.ParseSMILES(smiles)
	return err
}

//Personal.AI order the ending
