package domain

import (
	"path"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	ResourceTypeAsset             = "dam:Asset"
	ResourceTypeRendition         = "dam:Rendition"
	ResourceTypeFile              = "nt:file"
	ResourceTypeResource          = "nt:resource"
	ResourceTypePage              = "cq:Page"
	ResourceTypePageContent       = "cq:PageContent"
	ResourceTypeUnstructured      = "nt:unstructured"
	ResourceTypeImageComponent    = "foundation/components/image"
	ResourceTypeLocalSocialImage  = "social:asiFile"
	ResourceTypeRemoteSocialImage = "nt:adobesocialtype"

	NameContent    = "jcr:content"
	NameRenditions = "renditions"
	NameMetadata   = "metadata"
	NameImage      = "image"
	NameOriginal   = "original"

	PropertyFileReference = "fileReference"
	PropertyMimeType      = "mimetype"
	PropertyOrientation   = "tiff:Orientation"
	PropertyImageCrop     = "imageCrop"
	PropertyImageRotate   = "imageRotate"
)

// Resource is a node in the content tree. Binary content, when present, is
// stored separately under BinaryKey.
type Resource struct {
	Path        string
	Type        string
	MimeType    string
	BinaryKey   string
	Properties  map[string]any
	Replication *ReplicationStatus
}

type ReplicationStatus struct {
	LastAction string    `json:"last_action"`
	LastBy     string    `json:"last_by"`
	At         time.Time `json:"at"`
}

func (r Resource) IsType(t string) bool { return r.Type == t }

func (r Resource) Name() string { return path.Base(r.Path) }

func (r Resource) ParentPath() string { return ParentPath(r.Path) }

func (r Resource) HasBinary() bool { return strings.TrimSpace(r.BinaryKey) != "" }

// IsRendition reports whether the resource sits in an asset's renditions
// folder.
func (r Resource) IsRendition() bool {
	if r.Type == ResourceTypeRendition {
		return true
	}
	return strings.HasSuffix(r.ParentPath(), "/"+NameContent+"/"+NameRenditions)
}

func (r Resource) StringProperty(key, fallback string) string {
	v, ok := r.Properties[key]
	if !ok || v == nil {
		return fallback
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fallback
	}
	return s
}

func ParentPath(p string) string {
	p = path.Clean(p)
	if p == "/" || p == "." {
		return ""
	}
	return path.Dir(p)
}

func ChildPath(parent string, rel ...string) string {
	return path.Join(append([]string{parent}, rel...)...)
}
