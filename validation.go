package easyweb

// Validator accumulates frame-shape errors found while parsing a wire
// format, so a Frame's ValidateSize method can report
// a problem without panicking on short or malformed buffers. The zero
// value is ready to use.
type Validator struct {
	err error
}

// AddError records err, keeping only the first error seen since the last Reset.
func (v *Validator) AddError(err error) {
	if v.err == nil {
		v.err = err
	}
}

// Err returns the first error recorded since the last Reset, or nil.
func (v *Validator) Err() error { return v.err }

// HasError reports whether any error has been recorded since the last Reset.
func (v *Validator) HasError() bool { return v.err != nil }

// Reset clears previously recorded errors so the Validator can be reused.
func (v *Validator) Reset() { v.err = nil }
