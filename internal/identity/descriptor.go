package identity

// Descriptor is a signed texture property. A nil *Descriptor means the owner
// renders with the default appearance.
type Descriptor struct {
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

func (d *Descriptor) Valid() bool {
	return d != nil && d.Value != ""
}
