package api

// ContentKind identifies the variant of a Content item.
type ContentKind string

const (
	ContentKindText     ContentKind = "text"
	ContentKindImage    ContentKind = "image"
	ContentKindResource ContentKind = "resource"
)

// Content is one item of a tool response. The set of variants is closed:
// *TextContent, *ImageContent and *ResourceContent.
type Content interface {
	Kind() ContentKind
	isContent()
}

// TextContent carries plain or structured text.
type TextContent struct {
	Text string
}

// ImageContent carries binary image data.
type ImageContent struct {
	Data     []byte
	MIMEType string
}

// ResourceContent embeds an external reference, optionally with its
// contents. At most one of Text and Blob is set.
type ResourceContent struct {
	URI      string
	MIMEType string
	Text     string
	Blob     []byte
}

func (*TextContent) Kind() ContentKind     { return ContentKindText }
func (*ImageContent) Kind() ContentKind    { return ContentKindImage }
func (*ResourceContent) Kind() ContentKind { return ContentKindResource }

func (*TextContent) isContent()     {}
func (*ImageContent) isContent()    {}
func (*ResourceContent) isContent() {}

// Compile-time checks.
var (
	_ Content = (*TextContent)(nil)
	_ Content = (*ImageContent)(nil)
	_ Content = (*ResourceContent)(nil)
)
