// SPDX-License-Identifier: MPL-2.0

package forgefile

import (
	"fmt"
	"sort"
)

// StructureValidator validates the structural correctness of a forgefile:
// identity parameters, base image coordinates, manifest and entrypoint
// path shapes, environment variables, and labels. It performs no
// filesystem access; that is the files validator's job.
type StructureValidator struct{}

// NewStructureValidator creates a new StructureValidator.
func NewStructureValidator() *StructureValidator {
	return &StructureValidator{}
}

// Name returns the validator name.
func (v *StructureValidator) Name() ValidatorName {
	return "structure"
}

// Validate checks the forgefile structure and collects all validation errors.
func (v *StructureValidator) Validate(ctx *ValidationContext, f *Forgefile) []ValidationError {
	var errs []ValidationError

	errs = append(errs, v.validateIdentity(f)...)
	errs = append(errs, v.validateBase(f)...)
	errs = append(errs, v.validatePaths(f)...)
	errs = append(errs, v.validateEnv(f)...)
	errs = append(errs, v.validateLabels(f)...)

	return errs
}

func (v *StructureValidator) validateIdentity(f *Forgefile) []ValidationError {
	var errs []ValidationError
	if err := f.Owner.Validate(); err != nil {
		errs = append(errs, ValidationError{
			Validator: v.Name(),
			Field:     "owner",
			Message:   err.Error(),
			Severity:  SeverityError,
		})
	}
	if err := f.Contact.Validate(); err != nil {
		errs = append(errs, ValidationError{
			Validator: v.Name(),
			Field:     "contact",
			Message:   err.Error(),
			Severity:  SeverityError,
		})
	}
	if err := f.Project.Validate(); err != nil {
		errs = append(errs, ValidationError{
			Validator: v.Name(),
			Field:     "project",
			Message:   err.Error(),
			Severity:  SeverityError,
		})
	}
	return errs
}

func (v *StructureValidator) validateBase(f *Forgefile) []ValidationError {
	if f.Base == nil {
		return nil
	}
	var errs []ValidationError
	if ok, baseErrs := f.Base.IsValid(); !ok {
		for _, err := range baseErrs {
			errs = append(errs, ValidationError{
				Validator: v.Name(),
				Field:     "base",
				Message:   err.Error(),
				Severity:  SeverityError,
			})
		}
	}
	// A digest with an explicit tag is accepted (the digest wins) but is
	// worth flagging: the tag is ignored and tends to mislead readers.
	if f.Base.Digest != "" && f.Base.Tag != "" {
		errs = append(errs, ValidationError{
			Validator: v.Name(),
			Field:     "base",
			Message:   fmt.Sprintf("both tag %q and digest set; the digest pins the base and the tag is ignored", f.Base.Tag),
			Severity:  SeverityWarning,
		})
	}
	return errs
}

func (v *StructureValidator) validatePaths(f *Forgefile) []ValidationError {
	var errs []ValidationError
	if err := f.Manifest.Validate(); err != nil {
		errs = append(errs, ValidationError{
			Validator: v.Name(),
			Field:     "manifest",
			Message:   err.Error(),
			Severity:  SeverityError,
		})
	}
	if err := f.Entrypoint.Validate(); err != nil {
		errs = append(errs, ValidationError{
			Validator: v.Name(),
			Field:     "entrypoint",
			Message:   err.Error(),
			Severity:  SeverityError,
		})
	}
	return errs
}

func (v *StructureValidator) validateEnv(f *Forgefile) []ValidationError {
	var errs []ValidationError
	seen := make(map[EnvVarName]int)
	for i, ev := range f.Env {
		field := fmt.Sprintf("env[%d]", i)
		if err := ev.Validate(); err != nil {
			errs = append(errs, ValidationError{
				Validator: v.Name(),
				Field:     field,
				Message:   err.Error(),
				Severity:  SeverityError,
			})
			continue
		}
		if prev, dup := seen[ev.Name]; dup {
			errs = append(errs, ValidationError{
				Validator: v.Name(),
				Field:     field,
				Message:   fmt.Sprintf("duplicate environment variable %q (first declared at env[%d])", ev.Name, prev),
				Severity:  SeverityError,
			})
			continue
		}
		seen[ev.Name] = i
	}
	return errs
}

func (v *StructureValidator) validateLabels(f *Forgefile) []ValidationError {
	if len(f.Labels) == 0 {
		return nil
	}
	// Sort keys so repeated runs report issues in a stable order.
	keys := make([]string, 0, len(f.Labels))
	for k := range f.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []ValidationError
	for _, k := range keys {
		if err := ValidateLabel(k, f.Labels[k]); err != nil {
			errs = append(errs, ValidationError{
				Validator: v.Name(),
				Field:     "labels." + k,
				Message:   err.Error(),
				Severity:  SeverityError,
			})
		}
	}
	return errs
}
