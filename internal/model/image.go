package model

// Provenance tells where an image came from.
type Provenance string

// Image provenances.
const (
	ProvenanceUpload  Provenance = "upload"
	ProvenanceExample Provenance = "example"
)

// ImageInput is one image ready to classify. It lives for a single
// classification and is replaced by the next selection.
type ImageInput struct {
	Provenance Provenance
	// Name is the upload's file name or the example's display name.
	Name string
	// Format is the decoder name reported by the image package ("jpeg", "png").
	Format string
	Data   []byte
}

// Selection is the user's choice of image: either an Upload or an Example.
// The interface is sealed so a selection is always exactly one of the two.
type Selection interface {
	Provenance() Provenance
	sealed()
}

// Upload is a user-supplied image.
type Upload struct {
	Name string
	Data []byte
}

// Provenance implements Selection.
func (Upload) Provenance() Provenance { return ProvenanceUpload }

func (Upload) sealed() {}

// Example is a preset example image, identified by its display name.
type Example struct {
	Name string
}

// Provenance implements Selection.
func (Example) Provenance() Provenance { return ProvenanceExample }

func (Example) sealed() {}
