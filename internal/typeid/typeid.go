package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixImage      = "img"
	PrefixAnnotation = "anno"
	PrefixGroup      = "grp"
	PrefixProject    = "proj"
	PrefixAsset      = "asset"
	PrefixExport     = "exp"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewImageID() string      { return New(PrefixImage) }
func NewAnnotationID() string { return New(PrefixAnnotation) }
func NewGroupID() string      { return New(PrefixGroup) }
func NewProjectID() string    { return New(PrefixProject) }
func NewExportID() string     { return New(PrefixExport) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
